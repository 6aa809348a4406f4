package domain

import (
	"encoding/json"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{name: "text unquoted", input: Text("World"), expected: "World"},
		{name: "number verbatim", input: Number("1.50"), expected: "1.50"},
		{name: "bool", input: Bool(true), expected: "true"},
		{name: "null", input: Null{}, expected: "null"},
		{name: "nil interface", input: nil, expected: "null"},
		{
			name:     "object keeps member order",
			input:    Object{{Key: "b", Value: Number("2")}, {Key: "a", Value: Text("x")}},
			expected: `{"b":2,"a":"x"}`,
		},
		{
			name:     "array",
			input:    Array{Number("1"), Bool(false), Null{}},
			expected: `[1,false,null]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.input); got != tt.expected {
				t.Errorf("Render() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseProperties(t *testing.T) {
	props, err := ParseProperties(`{"user":"alice","n":42,"ok":true,"nested":{"x":[1,2]}}`)
	if err != nil {
		t.Fatalf("ParseProperties() error = %v", err)
	}
	if len(props) != 4 {
		t.Fatalf("expected 4 properties, got %d", len(props))
	}
	if props["user"] != Text("alice") {
		t.Errorf("user = %#v", props["user"])
	}
	if props["n"] != Number("42") {
		t.Errorf("n = %#v", props["n"])
	}
	if props["ok"] != Bool(true) {
		t.Errorf("ok = %#v", props["ok"])
	}
	if got := Render(props["nested"]); got != `{"x":[1,2]}` {
		t.Errorf("nested = %s", got)
	}

	for _, empty := range []string{"", "null", "{}"} {
		props, err := ParseProperties(empty)
		if err != nil || props != nil {
			t.Errorf("ParseProperties(%q) = %v, %v; want nil, nil", empty, props, err)
		}
	}

	if _, err := ParseProperties(`[1,2]`); err == nil {
		t.Error("expected error for non-object properties")
	}
}

func TestPropertiesEncode(t *testing.T) {
	encoded, err := Properties{"user": Text("alice"), "n": Number("7")}.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// encoding/json sorts map keys
	if encoded != `{"n":7,"user":"alice"}` {
		t.Errorf("Encode() = %s", encoded)
	}

	empty, _ := Properties(nil).Encode()
	if empty != "{}" {
		t.Errorf("Encode() of nil = %s, want {}", empty)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("encoded properties are not valid JSON: %v", err)
	}
}
