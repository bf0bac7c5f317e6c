package schema

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestTextType(t *testing.T) {
	typ := Text()

	if typ.Name() != "text" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "text")
	}

	for _, v := range []string{"", "10px 25px", "<b>anything</b>"} {
		if err := typ.Validate(v); err != nil {
			t.Errorf("Validate(%q) error = %v, want nil", v, err)
		}
	}
}

func TestColorType(t *testing.T) {
	typ := Color()

	if typ.Name() != "color" {
		t.Errorf("Name() = %q, want %q", typ.Name(), "color")
	}

	tests := []struct {
		value   string
		wantErr bool
	}{
		{"#fff", false},
		{"#e56a54", false},
		{"#E56A54FF", false},
		{"", false}, // unset
		{"rgb(0, 0, 0)", false},
		{"rgba(0,0,0,0.5)", false},
		{"transparent", false},
		{"#ggg", true},
		{"#12345", true},
		{"12px", true},
		{"url(x.png)", true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestEnumType(t *testing.T) {
	typ := Enum("left", "center", "right")

	if typ.Name() != "enum(left|center|right)" {
		t.Errorf("Name() = %q", typ.Name())
	}

	tests := []struct {
		value   string
		wantErr bool
	}{
		{"left", false},
		{"right", false},
		{"", true},
		{"LEFT", true},
		{"justify", true},
	}

	for _, tt := range tests {
		err := typ.Validate(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}

func TestCustomType(t *testing.T) {
	px := Custom("px", func(v string) error {
		var n int
		if _, err := fmt.Sscanf(v, "%dpx", &n); err != nil {
			return fmt.Errorf("expected pixels")
		}
		return nil
	})

	if px.Name() != "px" {
		t.Errorf("Name() = %q, want px", px.Name())
	}
	if err := px.Validate("600px"); err != nil {
		t.Errorf("Validate(600px) error = %v", err)
	}
	if err := px.Validate("auto"); err == nil {
		t.Error("Validate(auto) should fail")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		kind     string
		values   []string
		wantName string
		wantErr  bool
	}{
		{"text", nil, "text", false},
		{"", nil, "text", false},
		{"color", nil, "color", false},
		{"select", []string{"a", "b"}, "enum(a|b)", false},
		{"enum", []string{"x"}, "enum(x)", false},
		{"enum", nil, "", true},
		{"number", nil, "", true},
	}

	for _, tt := range tests {
		typ, err := ParseType(tt.kind, tt.values...)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			continue
		}
		if err == nil && typ.Name() != tt.wantName {
			t.Errorf("ParseType(%q).Name() = %q, want %q", tt.kind, typ.Name(), tt.wantName)
		}
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(Color()) != KindColor || KindOf(Enum("a")) != KindEnum || KindOf(Text()) != KindText {
		t.Error("KindOf() returned an unexpected kind")
	}
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := Schema{
		"color": Color(),
		"align": Enum("left", "center"),
		"width": Text(),
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back Schema
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for key, typ := range s {
		if back[key] == nil || back[key].Name() != typ.Name() {
			t.Errorf("field %s: got %v, want %s", key, back[key], typ.Name())
		}
	}
}
