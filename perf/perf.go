package perf

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wesleyorama2/loader/internal/config"
	"github.com/wesleyorama2/loader/internal/output"
	"github.com/wesleyorama2/loader/internal/script"
	"github.com/wesleyorama2/loader/internal/search"
)

// Configuration types.
type (
	Config         = config.RunConfig
	Settings       = config.Settings
	SearchSettings = config.SearchSettings
	StepConfig     = config.StepConfig
	Expectation    = config.Expectation
	Duration       = config.Duration
)

// Result types.
type (
	Result        = search.Result
	PeriodSummary = search.PeriodSummary
	Mode          = search.Mode
	StopReason    = search.StopReason
	Event         = search.Event
	Observer      = search.Observer
	ReportFormat  = output.ReportFormat
)

// Event types.
const (
	EventPeriodStarted   = search.EventPeriodStarted
	EventPeriodCompleted = search.EventPeriodCompleted
	EventModeChanged     = search.EventModeChanged
	EventSearchFinished  = search.EventSearchFinished
)

// Report formats.
const (
	FormatJSON  = output.FormatJSON
	FormatYAML  = output.FormatYAML
	FormatJUnit = output.FormatJUnit
	FormatHTML  = output.FormatHTML
)

// Ptr returns a pointer to v, for the optional fields of SearchSettings.
func Ptr[T any](v T) *T {
	return config.Ptr(v)
}

// LoadConfig reads, defaults and validates a configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// ParseConfig parses configuration data; filename selects JSON or YAML.
func ParseConfig(data []byte, filename string) (*Config, error) {
	return config.ParseConfig(data, filename)
}

// Runner runs a throughput search for one configuration.
type Runner struct {
	config    *Config
	logger    *zap.Logger
	observers []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used by the controller and the executor.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithObserver registers a progress observer.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, observer)
	}
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *Config, opts ...Option) *Runner {
	r := &Runner{config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run applies defaults, validates the configuration and runs the search.
//
// A search that finds no sustainable throughput is not an error: check
// Result.MaxThroughput. On cancellation the partial result is returned
// together with the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.ApplyDefaults(r.config)
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	steps, err := script.Build(r.config)
	if err != nil {
		return nil, err
	}

	executor := search.NewExecutor(script.NewTransportFactory(r.config), search.WithExecutorLogger(r.logger))

	opts := []search.ControllerOption{search.WithLogger(r.logger)}
	for _, observer := range r.observers {
		opts = append(opts, search.WithObserver(observer))
	}

	return search.NewController(executor, steps, r.config.ToSearchConfig(), opts...).Run(ctx)
}

// WriteReport writes result to w in the given format.
func WriteReport(w io.Writer, name string, result *Result, format ReportFormat) error {
	return output.WriteReport(w, name, result, format)
}
