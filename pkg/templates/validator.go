package templates

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/go-playground/validator"
)

// ErrInvalidTemplate wraps every validation failure.
var ErrInvalidTemplate = errors.New("invalid template")

// Validator checks templates before they are stored.
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a Validator with the template rules registered.
func NewValidator() *Validator {
	v := validator.New()
	if err := v.RegisterValidation("templatename", templateNameValidator); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("markup", markupValidator); err != nil {
		panic(err)
	}
	return &Validator{v}
}

// Validate returns an error wrapping ErrInvalidTemplate that names each failing field.
func (tv *Validator) Validate(t *domain.Template) error {
	if t == nil {
		return fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}
	err := tv.validator.Struct(t)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, describe(f))
	}
	return fmt.Errorf("%w: %s", ErrInvalidTemplate, strings.Join(msgs, "; "))
}

func describe(f validator.FieldError) string {
	field := strings.ToLower(f.Field())
	switch f.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, f.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, f.Param())
	case "templatename":
		return field + " must not have surrounding spaces or control characters"
	case "markup":
		return field + " must start with an element"
	default:
		return fmt.Sprintf("%s failed %q", field, f.Tag())
	}
}

func templateNameValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if strings.TrimSpace(value) != value {
		return false
	}
	return strings.IndexFunc(value, unicode.IsControl) < 0
}

func markupValidator(fl validator.FieldLevel) bool {
	return strings.HasPrefix(strings.TrimSpace(fl.Field().String()), "<")
}
