package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode is the search phase of the controller.
type Mode int

const (
	// ModeProbing grows the candidate exponentially while the target is met.
	ModeProbing Mode = iota
	// ModeRefining grows the candidate in small steps above the last passing level.
	ModeRefining
	// ModeTerminal ends the search.
	ModeTerminal
)

func (m Mode) String() string {
	switch m {
	case ModeProbing:
		return "probing"
	case ModeRefining:
		return "refining"
	case ModeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// StopReason explains why a search ended.
type StopReason string

const (
	// StopConverged means the target was missed twice and a passing level exists.
	StopConverged StopReason = "converged"
	// StopNoSustainableThroughput means no period ever met the target.
	StopNoSustainableThroughput StopReason = "no-sustainable-throughput"
	// StopPeriodLimit means MaxPeriods was reached first.
	StopPeriodLimit StopReason = "period-limit"
	// StopCancelled means the context was cancelled between periods.
	StopCancelled StopReason = "cancelled"
	// StopError means the period runner failed.
	StopError StopReason = "failed"
)

// Config controls the throughput search.
type Config struct {
	// ResponseTimeTarget is the latency SLA. A period passes when its mean
	// response time is strictly below it.
	ResponseTimeTarget time.Duration `json:"responseTimeTarget"`

	// PeriodLength is the duration of each period
	PeriodLength time.Duration `json:"periodLength"`

	// InitialThroughput is the first candidate worker count
	InitialThroughput int `json:"initialThroughput"`

	// GrowthFactor multiplies the candidate while probing
	GrowthFactor float64 `json:"growthFactor"`

	// RefinementRatio multiplies the candidate while refining, the
	// candidate always grows by at least one
	RefinementRatio float64 `json:"refinementRatio"`

	// ExitOnSecondFailure ends the search on the first miss while refining.
	// When false the controller restarts refining from the last passing
	// level and runs until MaxPeriods or cancellation.
	ExitOnSecondFailure bool `json:"exitOnSecondFailure"`

	// MaxPeriods bounds the number of periods, 0 means unbounded
	MaxPeriods int `json:"maxPeriods,omitempty"`

	// MaxErrorRate fails a period whose failed fraction exceeds it, 0 disables the check
	MaxErrorRate float64 `json:"maxErrorRate,omitempty"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		ResponseTimeTarget:  250 * time.Millisecond,
		PeriodLength:        10 * time.Second,
		InitialThroughput:   1,
		GrowthFactor:        2,
		RefinementRatio:     1.1,
		ExitOnSecondFailure: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if c.ResponseTimeTarget <= 0 {
		add("responseTimeTarget", "response time target must be > 0")
	}
	if c.PeriodLength <= 0 {
		add("periodLength", "period length must be > 0")
	}
	if c.InitialThroughput < 1 {
		add("initialThroughput", "initial throughput must be > 0")
	}
	if c.GrowthFactor <= 1 {
		add("growthFactor", "growth factor must be > 1")
	}
	if c.RefinementRatio < 1 {
		add("refinementRatio", "refinement ratio must be >= 1")
	}
	if c.MaxPeriods < 0 {
		add("maxPeriods", "max periods cannot be negative")
	}
	if c.MaxErrorRate < 0 || c.MaxErrorRate > 1 {
		add("maxErrorRate", "max error rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// State is the controller's search state.
type State struct {
	Mode           Mode `json:"mode"`
	Current        int  `json:"current"`
	LastSuccessful int  `json:"lastSuccessful"`
}

// Grow returns the next probing candidate: current × factor, at least current+1.
func Grow(current int, factor float64) int {
	return max(current+1, int(math.Round(float64(current)*factor)))
}

// Increment returns the next refining candidate: current × ratio, at least
// current+1 and never below 2. For current in 2..4 the current+1 floor wins
// over max(2, round(current × ratio)), which would repeat the candidate.
func Increment(current int, ratio float64) int {
	return max(2, current+1, int(math.Round(float64(current)*ratio)))
}

// NextCandidate returns the candidate that follows current in the given mode.
func NextCandidate(mode Mode, current int, cfg Config) int {
	switch mode {
	case ModeProbing:
		return Grow(current, cfg.GrowthFactor)
	case ModeRefining:
		return Increment(current, cfg.RefinementRatio)
	default:
		return current
	}
}

// Advance applies the outcome of one period to the search state.
//
// On success the candidate becomes the last passing level and grows with
// the current mode. The first miss switches to refining just above the
// last passing level; a miss while refining ends the search, unless
// ExitOnSecondFailure is off, in which case refining restarts.
func Advance(state State, success bool, cfg Config) State {
	if state.Mode == ModeTerminal {
		return state
	}

	if success {
		state.LastSuccessful = state.Current
		state.Current = NextCandidate(state.Mode, state.Current, cfg)
		return state
	}

	if state.Mode == ModeRefining && cfg.ExitOnSecondFailure {
		state.Mode = ModeTerminal
		return state
	}

	state.Mode = ModeRefining
	state.Current = NextCandidate(ModeRefining, state.LastSuccessful, cfg)
	return state
}

// PeriodRunner runs a single load period.
type PeriodRunner interface {
	RunPeriod(ctx context.Context, periodLength time.Duration, concurrency int, script []Step) (*PeriodResult, error)
}

// Result is the outcome of a search.
type Result struct {
	RunID     string    `json:"runId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Config    Config    `json:"config"`

	// Periods holds every raw period in execution order
	Periods []*PeriodResult `json:"-"`

	// Summaries holds one summary per period in execution order
	Summaries []PeriodSummary `json:"periods"`

	// MaxThroughput is the highest candidate that met the target, 0 if none did
	MaxThroughput int `json:"maxThroughput"`

	Reason    StopReason `json:"reason"`
	FinalMode Mode       `json:"finalMode"`
}

// Converged reports whether the search found a sustainable throughput and ended normally.
func (r *Result) Converged() bool {
	return r.Reason == StopConverged
}

// Controller searches for the maximum sustainable throughput.
//
// The controller loop is strictly sequential: a period fully completes
// before the next decision is made, and the search state is never shared.
type Controller struct {
	runner    PeriodRunner
	script    []Step
	config    Config
	logger    *zap.Logger
	observers []Observer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer for progress events.
func WithObserver(observer Observer) ControllerOption {
	return func(c *Controller) {
		if observer != nil {
			c.observers = append(c.observers, observer)
		}
	}
}

// NewController creates a controller that runs script through runner.
func NewController(runner PeriodRunner, script []Step, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		runner: runner,
		script: script,
		config: cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "controller"))
	return c
}

// Run executes the search.
//
// Configuration errors are returned before any period runs. Cancellation
// is only observed between periods; the partial result is returned along
// with the context error. A search in which no period met the target
// returns normally with Reason StopNoSustainableThroughput.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search configuration: %w", err)
	}
	if err := validateScript(c.script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	names := make([]string, len(c.script))
	for i, step := range c.script {
		names[i] = step.Name
	}

	result := &Result{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Config:    c.config,
	}
	logger := c.logger.With(zap.String("run_id", result.RunID))
	logger.Info("starting throughput search",
		zap.Duration("target", c.config.ResponseTimeTarget),
		zap.Duration("period_length", c.config.PeriodLength),
		zap.Int("initial_throughput", c.config.InitialThroughput),
	)

	state := State{Mode: ModeProbing, Current: c.config.InitialThroughput}

	for period := 1; ; period++ {
		if err := ctx.Err(); err != nil {
			c.finish(result, state, StopCancelled)
			logger.Warn("search cancelled", zap.Int("periods", period-1))
			return result, err
		}
		if c.config.MaxPeriods > 0 && period > c.config.MaxPeriods {
			c.finish(result, state, StopPeriodLimit)
			logger.Info("period limit reached", zap.Int("max_periods", c.config.MaxPeriods))
			return result, nil
		}

		c.emit(Event{Type: EventPeriodStarted, RunID: result.RunID, Period: period, Candidate: state.Current, Mode: state.Mode})

		pr, err := c.runner.RunPeriod(ctx, c.config.PeriodLength, state.Current, c.script)
		if err != nil {
			reason := StopError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = StopCancelled
			}
			c.finish(result, state, reason)
			logger.Error("period failed", zap.Int("period", period), zap.Error(err))
			return result, fmt.Errorf("period %d at throughput %d: %w", period, state.Current, err)
		}

		summary := Summarize(pr, names)
		summary.Period = period
		summary.Mode = state.Mode
		summary.Success = c.passes(summary)

		result.Periods = append(result.Periods, pr)
		result.Summaries = append(result.Summaries, summary)

		logger.Info("period completed",
			zap.Int("period", period),
			zap.Int("throughput", state.Current),
			zap.Float64("achieved_throughput", summary.AchievedThroughput),
			zap.Duration("mean_response_time", summary.MeanResponseTime),
			zap.Int("samples", summary.Samples),
			zap.Int("failures", summary.Failures),
			zap.Bool("success", summary.Success),
		)
		c.emit(Event{Type: EventPeriodCompleted, RunID: result.RunID, Period: period, Candidate: state.Current, Mode: state.Mode, Summary: &summary})

		next := Advance(state, summary.Success, c.config)
		if next.Mode != state.Mode {
			logger.Info("mode changed",
				zap.Stringer("from", state.Mode),
				zap.Stringer("to", next.Mode),
				zap.Int("last_successful", next.LastSuccessful),
				zap.Int("next_candidate", next.Current),
			)
			c.emit(Event{Type: EventModeChanged, RunID: result.RunID, Period: period, Candidate: next.Current, Mode: next.Mode, PreviousMode: state.Mode})
		}
		state = next

		if state.Mode == ModeTerminal {
			reason := StopConverged
			if state.LastSuccessful == 0 {
				reason = StopNoSustainableThroughput
			}
			c.finish(result, state, reason)
			logger.Info("search finished",
				zap.String("reason", string(reason)),
				zap.Int("max_throughput", result.MaxThroughput),
			)
			return result, nil
		}
	}
}

// passes applies the response time target, and the error budget if set.
func (c *Controller) passes(summary PeriodSummary) bool {
	if summary.Degenerate {
		return false
	}
	if summary.MeanResponseTime >= c.config.ResponseTimeTarget {
		return false
	}
	if c.config.MaxErrorRate > 0 && summary.ErrorRate > c.config.MaxErrorRate {
		return false
	}
	return true
}

func (c *Controller) finish(result *Result, state State, reason StopReason) {
	result.EndTime = time.Now()
	result.MaxThroughput = state.LastSuccessful
	result.Reason = reason
	result.FinalMode = state.Mode
	c.emit(Event{Type: EventSearchFinished, RunID: result.RunID, Mode: state.Mode, Result: result})
}

func (c *Controller) emit(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	for _, observer := range c.observers {
		observer(event)
	}
}
