package config

import (
	"strings"
	"testing"
)

func validConfig() *RunConfig {
	cfg := &RunConfig{
		Name:     "valid",
		Settings: Settings{BaseURL: "http://localhost:8080"},
		Script:   []StepConfig{{URL: "/"}},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	exists := true
	equals := Scalar("x")

	tests := []struct {
		name   string
		mutate func(*RunConfig)
		field  string
	}{
		{
			name:   "empty script",
			mutate: func(c *RunConfig) { c.Script = nil },
			field:  "script",
		},
		{
			name:   "invalid method",
			mutate: func(c *RunConfig) { c.Script[0].Method = "FETCH" },
			field:  "script[0].method",
		},
		{
			name:   "missing url",
			mutate: func(c *RunConfig) { c.Script[0].URL = "" },
			field:  "script[0].url",
		},
		{
			name: "relative url without base",
			mutate: func(c *RunConfig) {
				c.Settings.BaseURL = ""
				c.Script[0].URL = "/users"
			},
			field: "script[0].url",
		},
		{
			name:   "unsupported scheme",
			mutate: func(c *RunConfig) { c.Script[0].URL = "ftp://files.example.com/" },
			field:  "script[0].url",
		},
		{
			name:   "invalid base url",
			mutate: func(c *RunConfig) { c.Settings.BaseURL = "localhost" },
			field:  "settings.baseUrl",
		},
		{
			name:   "invalid expected status",
			mutate: func(c *RunConfig) { c.Script[0].Expect = &Expectation{Status: 42} },
			field:  "script[0].expect.status",
		},
		{
			name: "equals and exists together",
			mutate: func(c *RunConfig) {
				c.Script[0].Expect = &Expectation{JSON: []JSONExpectation{{Path: "$.a", Equals: &equals, Exists: &exists}}}
			},
			field: "script[0].expect.json[0]",
		},
		{
			name:   "growth factor",
			mutate: func(c *RunConfig) { c.Search.GrowthFactor = Ptr(1.0) },
			field:  "search.growthFactor",
		},
		{
			name:   "negative max periods",
			mutate: func(c *RunConfig) { c.Search.MaxPeriods = -1 },
			field:  "search.maxPeriods",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			verrs, ok := err.(*ValidationErrors)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationErrors", err)
			}
			if fields := verrs.Fields(); len(fields) != 1 || fields[0] != tt.field {
				t.Errorf("fields = %v, want [%s]", fields, tt.field)
			}
		})
	}
}

func TestValidate_AbsoluteURLWithoutBase(t *testing.T) {
	cfg := validConfig()
	cfg.Settings.BaseURL = ""
	cfg.Script[0].URL = "https://api.example.com/health"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_VariablesInURL(t *testing.T) {
	cfg := validConfig()
	cfg.Settings.BaseURL = ""
	cfg.Variables = map[string]string{"host": "https://api.example.com"}
	cfg.Script[0].URL = "{{host}}/health"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.HasErrors() {
		t.Error("HasErrors() should be false")
	}

	errs.Add("script", "at least one step is required")
	if got := errs.Error(); got != "validation error on field 'script': at least one step is required" {
		t.Errorf("Error() = %q", got)
	}

	errs.Add("", "something else")
	msg := errs.Error()
	if !strings.HasPrefix(msg, "2 validation errors:") {
		t.Errorf("Error() = %q", msg)
	}
	if !strings.Contains(msg, "validation error: something else") {
		t.Errorf("Error() = %q, want unnamed field message", msg)
	}
}

func TestPointerToField(t *testing.T) {
	tests := map[string]string{
		"":                             "",
		"/search/periodLength":         "search.periodLength",
		"/script/0":                    "script[0]",
		"/script/2/expect/json/1/path": "script[2].expect.json[1].path",
	}
	for pointer, want := range tests {
		if got := pointerToField(pointer); got != want {
			t.Errorf("pointerToField(%q) = %q, want %q", pointer, got, want)
		}
	}
}
