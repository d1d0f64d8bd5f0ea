// Package config provides configuration parsing and validation for throughput searches.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the root configuration of a throughput search.
//
// Example YAML:
//
//	name: "Checkout"
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  timeout: 30s
//	search:
//	  responseTimeTarget: 250ms
//	  periodLength: 10s
//	script:
//	  - name: "Home"
//	    method: GET
//	    url: "{{baseUrl}}/"
type RunConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains HTTP settings shared by all steps
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Variables are substituted into step URLs, headers and bodies
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Search tunes the throughput controller
	Search SearchSettings `json:"search,omitempty" yaml:"search,omitempty"`

	// Script is the ordered list of requests every worker replays
	Script []StepConfig `json:"script" yaml:"script"`
}

// Settings contains HTTP settings.
type Settings struct {
	// BaseURL is prepended to relative step URLs
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Headers are default headers applied to all requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// UserAgent is the default User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// DisableGzip stops requesting gzip-encoded responses
	DisableGzip bool `json:"disableGzip,omitempty" yaml:"disableGzip,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// SearchSettings tunes the throughput search.
//
// Fields that have a default are pointers: nil means unset, so that an
// explicit zero is kept and rejected by validation instead of defaulted.
type SearchSettings struct {
	// ResponseTimeTarget is the mean response time a period must stay below
	ResponseTimeTarget *Duration `json:"responseTimeTarget,omitempty" yaml:"responseTimeTarget,omitempty"`

	// ResponseTimeTargetMs is ResponseTimeTarget in integer milliseconds
	ResponseTimeTargetMs *int `json:"responseTimeTargetMs,omitempty" yaml:"responseTimeTargetMs,omitempty"`

	// PeriodLength is the duration of each load period
	PeriodLength *Duration `json:"periodLength,omitempty" yaml:"periodLength,omitempty"`

	// PeriodLengthMs is PeriodLength in integer milliseconds
	PeriodLengthMs *int `json:"periodLengthMs,omitempty" yaml:"periodLengthMs,omitempty"`

	// InitialThroughput is the worker count of the first period
	InitialThroughput *int `json:"initialThroughput,omitempty" yaml:"initialThroughput,omitempty"`

	// GrowthFactor multiplies the worker count while probing
	GrowthFactor *float64 `json:"growthFactor,omitempty" yaml:"growthFactor,omitempty"`

	// RefinementRatio multiplies the worker count while refining
	RefinementRatio *float64 `json:"refinementRatio,omitempty" yaml:"refinementRatio,omitempty"`

	// ExitOnSecondFailure stops the search on the second missed target (default true)
	ExitOnSecondFailure *bool `json:"exitOnSecondFailure,omitempty" yaml:"exitOnSecondFailure,omitempty"`

	// MaxPeriods bounds the number of periods, 0 means unbounded
	MaxPeriods int `json:"maxPeriods,omitempty" yaml:"maxPeriods,omitempty"`

	// MaxErrorRate fails periods whose error fraction exceeds it, 0 disables
	MaxErrorRate float64 `json:"maxErrorRate,omitempty" yaml:"maxErrorRate,omitempty"`
}

// Ptr returns a pointer to v, for setting optional fields in literals.
func Ptr[T any](v T) *T {
	return &v
}

// StepConfig defines a single HTTP request of the script.
type StepConfig struct {
	// Name for this step (used in per-step statistics)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method (GET, POST, PUT, DELETE, etc.)
	Method string `json:"method" yaml:"method"`

	// URL is the request URL (supports variable substitution)
	URL string `json:"url" yaml:"url"`

	// Headers are step-specific headers
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Query parameters are appended to the URL after substitution
	Query map[string]string `json:"query,omitempty" yaml:"query,omitempty"`

	// Body is the request body (supports variable substitution)
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Expect validates the response; an unmet expectation fails the step
	Expect *Expectation `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// Expectation describes what a successful response looks like.
type Expectation struct {
	// Status is the expected status code. When zero any status below 400 passes.
	Status int `json:"status,omitempty" yaml:"status,omitempty"`

	// JSON lists checks on the response body
	JSON []JSONExpectation `json:"json,omitempty" yaml:"json,omitempty"`
}

// JSONExpectation checks one value of a JSON response body.
type JSONExpectation struct {
	// Path is a JSONPath ($.items[0].id) or gjson path
	Path string `json:"path" yaml:"path"`

	// Equals is the expected value, compared as a string
	Equals *Scalar `json:"equals,omitempty" yaml:"equals,omitempty"`

	// Exists checks for presence (true) or absence (false) of the path
	Exists *bool `json:"exists,omitempty" yaml:"exists,omitempty"`
}

// Scalar is a string that also accepts JSON/YAML numbers and booleans.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	*s = Scalar(b)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", value.Line)
	}
	*s = Scalar(value.Value)
	return nil
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML.
//
// Values are Go duration strings ("250ms", "10s") or integer seconds.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a duration", value.Line)
	}
	dur, err := ParseDurationString(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
