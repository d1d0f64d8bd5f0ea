package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Executor runs fixed-duration load periods.
//
// Each period spawns exactly the requested number of workers. A worker
// replays the whole script in a tight loop until its own elapsed time
// reaches the period length. A pass that started before the deadline is
// always finished, so a period overruns by at most one pass; no step is
// ever left half done.
//
// Workers share nothing: each owns its Transport, its timers and its result
// buffer, which is handed to the executor once when the worker returns.
type Executor struct {
	newTransport TransportFactory
	logger       *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used for worker lifecycle messages.
func WithExecutorLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor whose workers get their transport from newTransport.
func NewExecutor(newTransport TransportFactory, opts ...ExecutorOption) *Executor {
	e := &Executor{
		newTransport: newTransport,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "executor"))
	return e
}

type workerOutput struct {
	results  []StepResult
	failures []StepResult
}

// RunPeriod runs concurrency workers for periodLength and returns every
// measurement they recorded, ordered by offset.
//
// Cancelling ctx does not shorten the period: in-flight requests are never
// interrupted. Callers check for cancellation between periods.
func (e *Executor) RunPeriod(ctx context.Context, periodLength time.Duration, concurrency int, script []Step) (*PeriodResult, error) {
	if periodLength <= 0 {
		return nil, &ValidationError{Field: "periodLength", Message: "period length must be > 0"}
	}
	if concurrency < 1 {
		return nil, &ValidationError{Field: "concurrency", Message: "concurrency must be > 0"}
	}
	if err := validateScript(script); err != nil {
		return nil, err
	}
	if e.newTransport == nil {
		return nil, fmt.Errorf("executor has no transport factory")
	}

	workCtx := context.WithoutCancel(ctx)
	handoff := make(chan workerOutput, concurrency)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			handoff <- e.runWorker(workCtx, id, periodLength, script)
		}(i)
	}
	wg.Wait()
	close(handoff)
	elapsed := time.Since(start)

	result := &PeriodResult{
		Length:      periodLength,
		Concurrency: concurrency,
		Elapsed:     elapsed,
		StepResults: make([]StepResult, 0),
	}
	for out := range handoff {
		result.StepResults = append(result.StepResults, out.results...)
		result.Failures = append(result.Failures, out.failures...)
	}

	// Workers finish in any order; restore temporal order.
	sortByOffset(result.StepResults)
	sortByOffset(result.Failures)

	e.logger.Debug("period finished",
		zap.Int("concurrency", concurrency),
		zap.Duration("elapsed", elapsed),
		zap.Int("results", len(result.StepResults)),
		zap.Int("failures", len(result.Failures)),
	)

	return result, nil
}

// runWorker replays the script until the period deadline.
func (e *Executor) runWorker(ctx context.Context, id int, periodLength time.Duration, script []Step) workerOutput {
	transport := e.newTransport()
	defer transport.Close()

	var out workerOutput
	stepTimer := &Timer{}

	for clock := StartTimer(); clock.Elapsed() < periodLength; {
		for j := range script {
			r := e.runStep(ctx, script[j], transport, stepTimer, clock.Elapsed(), j)
			if r.Failed {
				out.failures = append(out.failures, r)
			} else {
				out.results = append(out.results, r)
			}
		}
	}

	e.logger.Debug("worker finished",
		zap.Int("worker", id),
		zap.Int("results", len(out.results)),
		zap.Int("failures", len(out.failures)),
	)
	return out
}

// runStep executes one step and turns any error, or panic, into a failed result.
func (e *Executor) runStep(ctx context.Context, step Step, transport Transport, timer *Timer, offset time.Duration, index int) (result StepResult) {
	callStart := time.Now()

	defer func() {
		if p := recover(); p != nil {
			result = StepResult{Failed: true, Err: fmt.Errorf("step %q panicked: %v", step.Name, p)}
		}
		// The executor owns offset and index, whatever the step reported.
		result.Offset = offset
		result.Step = index
		if result.ResponseTime <= 0 {
			result.ResponseTime = time.Since(callStart)
		}
	}()

	r, err := step.Func(ctx, transport, timer, offset, index)
	if err != nil {
		r.Failed = true
		r.Err = err
	}
	return r
}

func sortByOffset(results []StepResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Offset < results[j].Offset
	})
}
