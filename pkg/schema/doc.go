// Package schema provides validation for the editable attributes of component types.
//
// It defines the attribute kinds the catalog declares (free text, colour and
// enumeration) plus support for custom validators. Schemas map attribute names to
// types, enabling advisory validation of the values a user typed into an editor.
//
// Basic usage:
//
//	s := schema.Schema{
//	    "color":       schema.Color(),
//	    "font-weight": schema.Enum("normal", "bold"),
//	    "padding":     schema.Text(),
//	}
//
//	attrs := map[string]string{
//	    "color":       "#e56a54",
//	    "font-weight": "heavy",
//	}
//
//	if err := schema.Validate(s, attrs); err != nil {
//	    // err is an *AggregateError holding one *ValidationError for font-weight
//	}
//
// Types can also be parsed from the kind names used in catalog data:
//
//	t, err := schema.ParseType("select", "left", "center", "right")
//
// Attributes are optional: Validate only checks the keys that are present.
package schema
