// Package jsonschema compiles JSON Schemas and reports violations as flat,
// located messages.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is a single schema violation.
type Violation struct {
	// Location is the JSON pointer of the offending value, "" for the root
	Location string
	Message  string
}

func (v Violation) Error() string {
	location := v.Location
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, v.Message)
}

// Schema is a compiled JSON Schema.
type Schema struct {
	schema *jsonschema.Schema
}

// Compile compiles a schema document. name is used as the resource URL.
func Compile(name string, schema []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{schema: compiled}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(name string, schema []byte) *Schema {
	s, err := Compile(name, schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document (as produced by encoding/json) and
// returns its violations, nil when valid.
func (s *Schema) Validate(doc interface{}) []Violation {
	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		return leafViolations(verr)
	}
	return []Violation{{Message: err.Error()}}
}

// ValidateJSON decodes data and validates it.
func (s *Schema) ValidateJSON(data []byte) ([]Violation, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate(doc), nil
}

// leafViolations flattens the error tree to its most specific causes.
func leafViolations(err *jsonschema.ValidationError) []Violation {
	if len(err.Causes) == 0 {
		return []Violation{{Location: err.InstanceLocation, Message: err.Message}}
	}

	var out []Violation
	for _, cause := range err.Causes {
		out = append(out, leafViolations(cause)...)
	}
	return out
}
