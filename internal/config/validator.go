package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wesleyorama2/loader/internal/search"
	"github.com/wesleyorama2/loader/pkg/jsonschema"
)

//go:embed schema.json
var schemaDocument []byte

var configSchema = jsonschema.MustCompile("loader-config.json", schemaDocument)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Fields returns the names of the invalid fields, in order.
func (e *ValidationErrors) Fields() []string {
	fields := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		fields[i] = err.Field
	}
	return fields
}

// ValidateSchema checks a decoded document against the configuration schema.
func ValidateSchema(doc interface{}) error {
	violations := configSchema.Validate(doc)
	if len(violations) == 0 {
		return nil
	}

	errs := &ValidationErrors{}
	for _, v := range violations {
		errs.Add(pointerToField(v.Location), v.Message)
	}
	return errs
}

// pointerToField turns a JSON pointer (/script/0/url) into a field path (script[0].url).
func pointerToField(pointer string) string {
	var sb strings.Builder
	for _, part := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if part == "" {
			continue
		}
		if isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// Validate validates the configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	validateSettings(&c.Settings, errs)

	if len(c.Script) == 0 {
		errs.Add("script", "at least one step is required")
	}
	for i := range c.Script {
		c.validateStep(fmt.Sprintf("script[%d]", i), &c.Script[i], errs)
	}

	if err := c.ToSearchConfig().Validate(); err != nil {
		var searchErrs search.ValidationErrors
		if errors.As(err, &searchErrs) {
			for _, e := range searchErrs {
				errs.Add("search."+e.Field, e.Message)
			}
		} else {
			errs.Add("search", err.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSettings(s *Settings, errs *ValidationErrors) {
	if s.BaseURL != "" {
		u, err := url.Parse(s.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("settings.baseUrl", fmt.Sprintf("invalid base URL: %s", s.BaseURL))
		}
	}
	if s.Timeout < 0 {
		errs.Add("settings.timeout", "timeout cannot be negative")
	}
}

func (c *RunConfig) validateStep(prefix string, step *StepConfig, errs *ValidationErrors) {
	method := strings.ToUpper(step.Method)
	if method == "" {
		method = "GET"
	}
	if !validMethods[method] {
		errs.Add(prefix+".method", fmt.Sprintf("invalid method: %s", step.Method))
	}

	if step.URL == "" {
		errs.Add(prefix+".url", "url is required")
	} else {
		resolved := ResolveVariables(step.URL, c.Variables, &c.Settings)
		u, err := url.Parse(resolved)
		switch {
		case err != nil:
			errs.Add(prefix+".url", fmt.Sprintf("invalid url: %s", resolved))
		case !u.IsAbs() && c.Settings.BaseURL == "":
			errs.Add(prefix+".url", "relative url requires settings.baseUrl")
		case u.IsAbs() && u.Scheme != "http" && u.Scheme != "https":
			errs.Add(prefix+".url", fmt.Sprintf("unsupported scheme: %s", u.Scheme))
		}
	}

	if step.Expect == nil {
		return
	}
	if step.Expect.Status != 0 && (step.Expect.Status < 100 || step.Expect.Status > 599) {
		errs.Add(prefix+".expect.status", fmt.Sprintf("invalid status code: %d", step.Expect.Status))
	}
	for i, check := range step.Expect.JSON {
		field := fmt.Sprintf("%s.expect.json[%d]", prefix, i)
		if check.Path == "" {
			errs.Add(field+".path", "path is required")
		}
		if check.Equals != nil && check.Exists != nil {
			errs.Add(field, "equals and exists are mutually exclusive")
		}
	}
}
