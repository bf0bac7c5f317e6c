package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind names the editable-attribute kinds declared by the catalog.
type Kind string

const (
	KindText  Kind = "text"
	KindColor Kind = "color"
	KindEnum  Kind = "enum"
)

// Type defines the contract for attribute value validation.
// Implementations determine how values are validated against a kind.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "text", "color").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value string) error
}

// --- Built-in Type Implementations ---

// TextType accepts any value.
type TextType struct{}

func (t *TextType) Name() string { return string(KindText) }

func (t *TextType) Validate(string) error { return nil }

var (
	hexColor   = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	funcColor  = regexp.MustCompile(`^(?:rgb|rgba|hsl|hsla)\(\s*[0-9.%\s,/]+\)$`)
	namedColor = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// ColorType validates CSS colours: hex, rgb()/hsl() forms and named colours.
// The empty value means "unset" and is accepted.
type ColorType struct{}

func (t *ColorType) Name() string { return string(KindColor) }

func (t *ColorType) Validate(value string) error {
	v := strings.TrimSpace(value)
	if v == "" || hexColor.MatchString(v) || funcColor.MatchString(v) || namedColor.MatchString(v) {
		return nil
	}
	return fmt.Errorf("expected a CSS colour, got %q", value)
}

// EnumType validates membership in a fixed set of values.
type EnumType struct {
	values []string
}

func (t *EnumType) Name() string {
	return fmt.Sprintf("enum(%s)", strings.Join(t.values, "|"))
}

func (t *EnumType) Validate(value string) error {
	if slices.Contains(t.values, value) {
		return nil
	}
	return fmt.Errorf("expected one of [%s], got %q", strings.Join(t.values, ", "), value)
}

// Values returns the accepted values in declaration order.
func (t *EnumType) Values() []string {
	return slices.Clone(t.values)
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(string) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value string) error {
	return t.validate(value)
}

// --- Factory Functions ---

// Text creates a free-text type validator.
func Text() Type { return &TextType{} }

// Color creates a colour type validator.
func Color() Type { return &ColorType{} }

// Enum creates an enumeration type validator.
func Enum(values ...string) Type {
	return &EnumType{values: slices.Clone(values)}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(string) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ParseType converts a kind name to a Type.
// "select" is accepted as an alias of "enum"; enum kinds need at least one value.
func ParseType(kind string, values ...string) (Type, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case "", KindText:
		return Text(), nil
	case KindColor:
		return Color(), nil
	case KindEnum, "select":
		if len(values) == 0 {
			return nil, fmt.Errorf("enum kind requires values")
		}
		return Enum(values...), nil
	default:
		return nil, fmt.Errorf("unsupported kind: %s", kind)
	}
}

// KindOf reports the Kind of a built-in Type. Custom types report KindText.
func KindOf(t Type) Kind {
	switch t.(type) {
	case *ColorType:
		return KindColor
	case *EnumType:
		return KindEnum
	default:
		return KindText
	}
}
