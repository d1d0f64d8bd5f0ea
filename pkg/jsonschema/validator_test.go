package jsonschema

import (
	"strings"
	"testing"
)

const stepSchema = `{
	"type": "object",
	"required": ["url"],
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"method": {"type": "string", "enum": ["GET", "POST"]},
		"retries": {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

func TestSchema_ValidateJSON(t *testing.T) {
	schema, err := Compile("step.json", []byte(stepSchema))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		name       string
		doc        string
		violations int
		location   string
	}{
		{name: "valid", doc: `{"url": "/a", "method": "GET"}`},
		{name: "missing required", doc: `{"method": "GET"}`, violations: 1, location: ""},
		{name: "wrong type", doc: `{"url": 5}`, violations: 1, location: "/url"},
		{name: "enum", doc: `{"url": "/a", "method": "PATCH"}`, violations: 1, location: "/method"},
		{name: "unknown property", doc: `{"url": "/a", "extra": true}`, violations: 1, location: ""},
		{name: "several", doc: `{"url": "", "retries": -1}`, violations: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := schema.ValidateJSON([]byte(tt.doc))
			if err != nil {
				t.Fatalf("ValidateJSON() error = %v", err)
			}
			if len(violations) != tt.violations {
				t.Fatalf("ValidateJSON() = %v, want %d violations", violations, tt.violations)
			}
			if tt.violations == 1 && violations[0].Location != tt.location {
				t.Errorf("Location = %q, want %q", violations[0].Location, tt.location)
			}
		})
	}
}

func TestSchema_ValidateJSON_InvalidDocument(t *testing.T) {
	schema := MustCompile("step.json", []byte(stepSchema))
	if _, err := schema.ValidateJSON([]byte(`{"url":`)); err == nil {
		t.Error("ValidateJSON() should fail on malformed JSON")
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	if _, err := Compile("bad.json", []byte(`{"type": 12}`)); err == nil {
		t.Error("Compile() should reject an invalid schema")
	}
	if _, err := Compile("broken.json", []byte(`{`)); err == nil {
		t.Error("Compile() should reject malformed JSON")
	}
}

func TestViolation_Error(t *testing.T) {
	v := Violation{Location: "/script/0/url", Message: "expected string"}
	if got := v.Error(); got != "/script/0/url: expected string" {
		t.Errorf("Error() = %q", got)
	}

	root := Violation{Message: "missing properties: 'script'"}
	if !strings.HasPrefix(root.Error(), "/: ") {
		t.Errorf("Error() = %q, want root location", root.Error())
	}
}
