package schema

import (
	"maps"
	"slices"
)

// Schema is a map of attribute names to their expected types.
// Example: {"color": Color(), "align": Enum("left", "center", "right")}
type Schema map[string]Type

// Validate checks the attributes that are present in attrs against the schema.
// Attributes are optional, so missing keys are not errors, and keys unknown to the
// schema are accepted as free text.
// Returns an *AggregateError with all validation failures found, ordered by key.
func Validate(schema Schema, attrs map[string]string) error {
	if len(schema) == 0 {
		// No schema = no validation
		return nil
	}

	var errs []error

	for _, key := range slices.Sorted(maps.Keys(attrs)) {
		fieldType, ok := schema[key]
		if !ok {
			continue
		}
		value := attrs[key]
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    key,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}

// ValidateFields validates only specific attributes against the schema.
// A requested field must be declared by the schema and present in attrs.
func ValidateFields(schema Schema, attrs map[string]string, fields ...string) error {
	if len(fields) == 0 {
		// No fields to validate
		return nil
	}

	var errs []error

	for _, fieldName := range fields {
		fieldType, exists := schema[fieldName]
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "not defined in schema",
			})
			continue
		}

		value, fieldExists := attrs[fieldName]
		if !fieldExists {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: "required",
			})
			continue
		}

		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    fieldName,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}
