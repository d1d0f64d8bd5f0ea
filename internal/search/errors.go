package search

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyScript is returned when a period or a search is started without steps.
var ErrEmptyScript = errors.New("script must contain at least one step")

// ValidationError represents an invalid argument or configuration value.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// validateScript checks that a script can be executed.
func validateScript(script []Step) error {
	if len(script) == 0 {
		return &ValidationError{Field: "script", Message: ErrEmptyScript.Error(), Err: ErrEmptyScript}
	}
	var errs ValidationErrors
	for i, step := range script {
		if step.Func == nil {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("script[%d]", i),
				Message: fmt.Sprintf("step %q has no function", step.Name),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
