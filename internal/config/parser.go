package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loader/internal/search"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "loader/1.0"
)

// LoadConfig reads and parses a configuration file.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data. filename selects the format: JSON
// for a .json extension, YAML otherwise.
//
// The document is checked against the configuration schema first, then
// decoded, defaulted and validated field by field.
func ParseConfig(data []byte, filename string) (*RunConfig, error) {
	isJSON := strings.EqualFold(filepath.Ext(filename), ".json")

	doc, err := decodeDocument(data, isJSON)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := ValidateSchema(doc); err != nil {
		return nil, err
	}

	var cfg RunConfig
	if isJSON {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeDocument decodes data into the generic form encoding/json produces,
// which is what the schema validator expects.
func decodeDocument(data []byte, isJSON bool) (interface{}, error) {
	var doc interface{}
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return map[string]interface{}{}, nil
	}

	// yaml.v3 produces ints and nested maps that the schema validator does
	// not understand; round-trip through JSON to normalise them.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var normalised interface{}
	if err := json.Unmarshal(raw, &normalised); err != nil {
		return nil, err
	}
	return normalised, nil
}

// ParseDurationString parses a Go duration string ("250ms", "10s", "1m30s")
// or an integer number of seconds. An empty string is zero.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid duration %q: cannot be negative", s)
		}
		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: cannot be negative", s)
	}
	return d, nil
}

// ApplyDefaults fills in unset values. Values that are set, zero included,
// are kept for Validate to judge.
func ApplyDefaults(cfg *RunConfig) {
	if cfg.Settings.Timeout == 0 {
		cfg.Settings.Timeout = Duration(DefaultTimeout)
	}
	if cfg.Settings.UserAgent == "" {
		cfg.Settings.UserAgent = DefaultUserAgent
	}

	defaults := search.DefaultConfig()
	s := &cfg.Search

	if s.ResponseTimeTarget == nil {
		target := defaults.ResponseTimeTarget
		if s.ResponseTimeTargetMs != nil {
			target = time.Duration(*s.ResponseTimeTargetMs) * time.Millisecond
		}
		s.ResponseTimeTarget = Ptr(Duration(target))
	}
	if s.PeriodLength == nil {
		length := defaults.PeriodLength
		if s.PeriodLengthMs != nil {
			length = time.Duration(*s.PeriodLengthMs) * time.Millisecond
		}
		s.PeriodLength = Ptr(Duration(length))
	}
	if s.InitialThroughput == nil {
		s.InitialThroughput = Ptr(defaults.InitialThroughput)
	}
	if s.GrowthFactor == nil {
		s.GrowthFactor = Ptr(defaults.GrowthFactor)
	}
	if s.RefinementRatio == nil {
		s.RefinementRatio = Ptr(defaults.RefinementRatio)
	}
	if s.ExitOnSecondFailure == nil {
		exit := defaults.ExitOnSecondFailure
		s.ExitOnSecondFailure = &exit
	}

	for i := range cfg.Script {
		step := &cfg.Script[i]
		if step.Method == "" {
			step.Method = "GET"
		}
		step.Method = strings.ToUpper(step.Method)
		if step.Name == "" {
			step.Name = fmt.Sprintf("%s %s", step.Method, step.URL)
		}
	}
}

// ToSearchConfig returns the controller configuration of cfg. Unset fields
// are zero, so ApplyDefaults must have run.
func (c *RunConfig) ToSearchConfig() search.Config {
	s := c.Search
	out := search.Config{
		MaxPeriods:   s.MaxPeriods,
		MaxErrorRate: s.MaxErrorRate,
	}
	if s.ResponseTimeTarget != nil {
		out.ResponseTimeTarget = time.Duration(*s.ResponseTimeTarget)
	}
	if s.PeriodLength != nil {
		out.PeriodLength = time.Duration(*s.PeriodLength)
	}
	if s.InitialThroughput != nil {
		out.InitialThroughput = *s.InitialThroughput
	}
	if s.GrowthFactor != nil {
		out.GrowthFactor = *s.GrowthFactor
	}
	if s.RefinementRatio != nil {
		out.RefinementRatio = *s.RefinementRatio
	}
	if s.ExitOnSecondFailure != nil {
		out.ExitOnSecondFailure = *s.ExitOnSecondFailure
	}
	return out
}

// ResolveVariables replaces {{name}} placeholders with values from globals.
// {{baseUrl}} resolves to settings.BaseURL. Unknown placeholders are left as-is.
func ResolveVariables(input string, globals map[string]string, settings *Settings) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	result := input
	for key, value := range globals {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	if settings != nil && settings.BaseURL != "" {
		result = strings.ReplaceAll(result, "{{baseUrl}}", settings.BaseURL)
	}
	return result
}

// ResolveMap applies ResolveVariables to every value of input.
func ResolveMap(input map[string]string, globals map[string]string, settings *Settings) map[string]string {
	if input == nil {
		return nil
	}
	result := make(map[string]string, len(input))
	for key, value := range input {
		result[key] = ResolveVariables(value, globals, settings)
	}
	return result
}
