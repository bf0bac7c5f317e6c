package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseTypeName converts a type name produced by Type.Name back to a Type.
// Supports "text", "color" and "enum(a|b|c)".
func ParseTypeName(name string) (Type, error) {
	if inner, ok := strings.CutPrefix(name, "enum("); ok {
		inner, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return nil, fmt.Errorf("malformed enum type: %s", name)
		}
		return ParseType(string(KindEnum), strings.Split(inner, "|")...)
	}
	return ParseType(name)
}

// MarshalJSON serializes the schema as a map of attribute names to type names.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.Name()
	}

	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the schema from a map of attribute names to type names.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := make(Schema, len(raw))
	for key, name := range raw {
		t, err := ParseTypeName(name)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		parsed[key] = t
	}

	*s = parsed
	return nil
}
