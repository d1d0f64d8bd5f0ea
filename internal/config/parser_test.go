package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds", input: "10s", expected: 10 * time.Second},
		{name: "milliseconds", input: "250ms", expected: 250 * time.Millisecond},
		{name: "combined duration", input: "1m30s", expected: 90 * time.Second},
		{name: "integer as seconds", input: "30", expected: 30 * time.Second},
		{name: "surrounding spaces", input: " 5s ", expected: 5 * time.Second},
		{name: "empty string", input: "", expected: 0},
		{name: "negative", input: "-1s", wantErr: true},
		{name: "negative integer", input: "-3", wantErr: true},
		{name: "invalid format", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDurationString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	yamlConfig := `
name: "Checkout"
description: "Checkout flow"
settings:
  baseUrl: "https://shop.example.com"
  timeout: 5s
  headers:
    X-Client: loader
variables:
  user: "alice"
search:
  responseTimeTarget: 200ms
  periodLength: 5
  initialThroughput: 4
  growthFactor: 3
  refinementRatio: 1.2
  exitOnSecondFailure: false
  maxPeriods: 20
  maxErrorRate: 0.05
script:
  - name: "Home"
    url: "{{baseUrl}}/"
  - method: post
    url: "/cart"
    body: '{"user": "{{user}}"}'
    expect:
      status: 201
      json:
        - path: "$.items[0].qty"
          equals: 1
        - path: "$.error"
          exists: false
`
	cfg, err := ParseConfig([]byte(yamlConfig), "run.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.Name != "Checkout" {
		t.Errorf("Name = %v, want %v", cfg.Name, "Checkout")
	}
	if cfg.Settings.BaseURL != "https://shop.example.com" {
		t.Errorf("BaseURL = %v", cfg.Settings.BaseURL)
	}
	if time.Duration(cfg.Settings.Timeout) != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Settings.Timeout)
	}
	if cfg.Settings.Headers["X-Client"] != "loader" {
		t.Errorf("Headers = %v", cfg.Settings.Headers)
	}
	if cfg.Variables["user"] != "alice" {
		t.Errorf("Variables[user] = %v", cfg.Variables["user"])
	}

	sc := cfg.ToSearchConfig()
	if sc.ResponseTimeTarget != 200*time.Millisecond {
		t.Errorf("ResponseTimeTarget = %v", sc.ResponseTimeTarget)
	}
	if sc.PeriodLength != 5*time.Second {
		t.Errorf("PeriodLength = %v, want 5s", sc.PeriodLength)
	}
	if sc.InitialThroughput != 4 || sc.GrowthFactor != 3 || sc.RefinementRatio != 1.2 {
		t.Errorf("search config = %+v", sc)
	}
	if sc.ExitOnSecondFailure {
		t.Error("ExitOnSecondFailure should be false")
	}
	if sc.MaxPeriods != 20 || sc.MaxErrorRate != 0.05 {
		t.Errorf("limits = %d, %v", sc.MaxPeriods, sc.MaxErrorRate)
	}

	if len(cfg.Script) != 2 {
		t.Fatalf("len(Script) = %d, want 2", len(cfg.Script))
	}
	if cfg.Script[0].Method != "GET" {
		t.Errorf("Script[0].Method = %v, want GET", cfg.Script[0].Method)
	}
	second := cfg.Script[1]
	if second.Method != "POST" {
		t.Errorf("Script[1].Method = %v, want POST", second.Method)
	}
	if second.Name != "POST /cart" {
		t.Errorf("Script[1].Name = %v, want generated name", second.Name)
	}
	if second.Expect == nil || second.Expect.Status != 201 {
		t.Fatalf("Expect = %+v", second.Expect)
	}
	if len(second.Expect.JSON) != 2 {
		t.Fatalf("len(Expect.JSON) = %d", len(second.Expect.JSON))
	}
	if eq := second.Expect.JSON[0].Equals; eq == nil || *eq != "1" {
		t.Errorf("Equals = %v, want 1", eq)
	}
	if ex := second.Expect.JSON[1].Exists; ex == nil || *ex {
		t.Errorf("Exists = %v, want false", ex)
	}
}

func TestParseConfig_JSON(t *testing.T) {
	jsonConfig := `{
		"name": "API",
		"settings": {"baseUrl": "http://localhost:8080", "timeout": "2s"},
		"search": {"responseTimeTargetMs": 150, "periodLengthMs": 2500},
		"script": [
			{"url": "/health", "expect": {"json": [{"path": "status", "equals": "ok"}, {"path": "up", "equals": true}]}}
		]
	}`

	cfg, err := ParseConfig([]byte(jsonConfig), "run.json")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	sc := cfg.ToSearchConfig()
	if sc.ResponseTimeTarget != 150*time.Millisecond {
		t.Errorf("ResponseTimeTarget = %v, want 150ms", sc.ResponseTimeTarget)
	}
	if sc.PeriodLength != 2500*time.Millisecond {
		t.Errorf("PeriodLength = %v, want 2.5s", sc.PeriodLength)
	}
	if !sc.ExitOnSecondFailure {
		t.Error("ExitOnSecondFailure should default to true")
	}

	checks := cfg.Script[0].Expect.JSON
	if *checks[0].Equals != "ok" {
		t.Errorf("Equals = %v, want ok", *checks[0].Equals)
	}
	if *checks[1].Equals != "true" {
		t.Errorf("Equals = %v, want true", *checks[1].Equals)
	}
}

func TestParseConfig_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		field  string
	}{
		{
			name:   "missing script",
			config: "name: x\n",
			field:  "",
		},
		{
			name:   "unknown top-level field",
			config: "script:\n  - url: http://x/\nscenarios: {}\n",
			field:  "",
		},
		{
			name:   "bad duration",
			config: "search:\n  periodLength: soon\nscript:\n  - url: http://x/\n",
			field:  "search.periodLength",
		},
		{
			name:   "step without url",
			config: "script:\n  - name: nothing\n",
			field:  "script[0]",
		},
		{
			name:   "error rate out of range",
			config: "search:\n  maxErrorRate: 2\nscript:\n  - url: http://x/\n",
			field:  "search.maxErrorRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.config), "run.yaml")
			if err == nil {
				t.Fatal("ParseConfig() should fail")
			}
			verrs, ok := err.(*ValidationErrors)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationErrors", err)
			}
			found := false
			for _, f := range verrs.Fields() {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %v, want %q", verrs.Fields(), tt.field)
			}
		})
	}
}

func TestParseConfig_Malformed(t *testing.T) {
	if _, err := ParseConfig([]byte("script: [\n"), "run.yaml"); err == nil {
		t.Error("ParseConfig() should fail on malformed YAML")
	}
	if _, err := ParseConfig([]byte(`{"script": [`), "run.json"); err == nil {
		t.Error("ParseConfig() should fail on malformed JSON")
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "run.yml")
	content := "name: file\nscript:\n  - url: http://localhost/\n"
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Name != "file" {
		t.Errorf("Name = %v, want file", cfg.Name)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("LoadConfig() error = %v, want not found", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &RunConfig{
		Script: []StepConfig{{URL: "/a"}, {Method: "delete", URL: "/b", Name: "remove"}},
	}

	ApplyDefaults(cfg)

	if time.Duration(cfg.Settings.Timeout) != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Settings.Timeout, DefaultTimeout)
	}
	if cfg.Settings.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %v", cfg.Settings.UserAgent)
	}

	sc := cfg.ToSearchConfig()
	if sc.ResponseTimeTarget != 250*time.Millisecond {
		t.Errorf("ResponseTimeTarget = %v, want 250ms", sc.ResponseTimeTarget)
	}
	if sc.PeriodLength != 10*time.Second {
		t.Errorf("PeriodLength = %v, want 10s", sc.PeriodLength)
	}
	if sc.InitialThroughput != 1 || sc.GrowthFactor != 2 || sc.RefinementRatio != 1.1 || !sc.ExitOnSecondFailure {
		t.Errorf("search defaults = %+v", sc)
	}

	if cfg.Script[0].Method != "GET" || cfg.Script[0].Name != "GET /a" {
		t.Errorf("Script[0] = %+v", cfg.Script[0])
	}
	if cfg.Script[1].Method != "DELETE" || cfg.Script[1].Name != "remove" {
		t.Errorf("Script[1] = %+v", cfg.Script[1])
	}
}

func TestApplyDefaults_DurationWinsOverMs(t *testing.T) {
	cfg := &RunConfig{Search: SearchSettings{
		ResponseTimeTarget:   Ptr(Duration(100 * time.Millisecond)),
		ResponseTimeTargetMs: Ptr(900),
	}}

	ApplyDefaults(cfg)

	if got := time.Duration(*cfg.Search.ResponseTimeTarget); got != 100*time.Millisecond {
		t.Errorf("ResponseTimeTarget = %v, want 100ms", got)
	}
}

func TestApplyDefaults_KeepsExplicitZero(t *testing.T) {
	cfg := &RunConfig{Search: SearchSettings{
		ResponseTimeTarget: Ptr(Duration(0)),
		PeriodLengthMs:     Ptr(0),
		InitialThroughput:  Ptr(0),
	}}

	ApplyDefaults(cfg)

	sc := cfg.ToSearchConfig()
	if sc.ResponseTimeTarget != 0 || sc.PeriodLength != 0 || sc.InitialThroughput != 0 {
		t.Errorf("explicit zeros replaced by defaults: %+v", sc)
	}
	if sc.GrowthFactor != 2 {
		t.Errorf("GrowthFactor = %v, want default 2", sc.GrowthFactor)
	}
}

func TestParseConfig_ExplicitZeroIsRejected(t *testing.T) {
	tests := []struct {
		name   string
		search string
		field  string
	}{
		{name: "initial throughput", search: "initialThroughput: 0", field: "search.initialThroughput"},
		{name: "period length", search: "periodLength: 0s", field: "search.periodLength"},
		{name: "period length seconds", search: "periodLength: 0", field: "search.periodLength"},
		{name: "response time target", search: "responseTimeTarget: 0ms", field: "search.responseTimeTarget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := "search:\n  " + tt.search + "\nscript:\n  - url: http://localhost/\n"
			_, err := ParseConfig([]byte(config), "run.yaml")
			if err == nil {
				t.Fatal("ParseConfig() should fail")
			}
			verrs, ok := err.(*ValidationErrors)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationErrors", err)
			}
			found := false
			for _, f := range verrs.Fields() {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %v, want %q", verrs.Fields(), tt.field)
			}
		})
	}
}

func TestResolveVariables(t *testing.T) {
	globals := map[string]string{
		"token": "secret",
		"host":  "example.com",
	}
	settings := &Settings{BaseURL: "https://api.example.com"}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "global variable", input: "Bearer {{token}}", expected: "Bearer secret"},
		{name: "baseUrl variable", input: "{{baseUrl}}/users", expected: "https://api.example.com/users"},
		{name: "multiple variables", input: "https://{{host}}/?key={{token}}", expected: "https://example.com/?key=secret"},
		{name: "no variables", input: "plain text", expected: "plain text"},
		{name: "unresolved variable", input: "{{unknown}}", expected: "{{unknown}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveVariables(tt.input, globals, settings)
			if got != tt.expected {
				t.Errorf("ResolveVariables() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResolveMap(t *testing.T) {
	if ResolveMap(nil, nil, nil) != nil {
		t.Error("ResolveMap(nil) should be nil")
	}

	got := ResolveMap(map[string]string{"Authorization": "Bearer {{token}}"}, map[string]string{"token": "t"}, nil)
	if got["Authorization"] != "Bearer t" {
		t.Errorf("ResolveMap() = %v", got)
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{input: `"250ms"`, expected: 250 * time.Millisecond},
		{input: `12`, expected: 12 * time.Second},
		{input: `""`, expected: 0},
		{input: `null`, expected: 0},
		{input: `"later"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalJSON([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && time.Duration(d) != tt.expected {
				t.Errorf("UnmarshalJSON() = %v, want %v", time.Duration(d), tt.expected)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `"1.5s"` {
		t.Errorf("MarshalJSON() = %s, want \"1.5s\"", b)
	}

	if got := Duration(0).GetDuration(time.Minute); got != time.Minute {
		t.Errorf("GetDuration() = %v, want default", got)
	}
}
