// Package search finds the highest throughput a service sustains under a
// response time target.
//
// The package has two layers:
//
//   - Executor runs one load period: N workers replay a script in a closed
//     loop for a fixed wall-clock duration and every step is measured.
//   - Controller drives an unbounded sequence of periods, grows the worker
//     count exponentially while the mean response time stays under the
//     target, then refines linearly from the last passing level until the
//     target is missed a second time.
//
// Concurrency is used as the throughput proxy. The achieved request rate is
// whatever N tight-looping workers manage to push; it is reported, but the
// search variable is always the worker count.
package search

import (
	"context"
	"time"

	http "github.com/wesleyorama2/loader/internal/http"
)

// Transport is the request-issuing handle owned by a single worker.
//
// Every worker gets its own Transport from a TransportFactory and closes it
// when the period ends, whatever the outcome of its last request.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	Close()
}

// TransportFactory creates the Transport for one worker.
type TransportFactory func() Transport

// StepFunc performs one request of a script.
//
// The timer is owned by the calling worker and may be restarted freely.
// offset is the worker's elapsed time when the step began and index the
// step's position in the script. A returned error marks the measurement as
// failed; it never stops the worker.
type StepFunc func(ctx context.Context, transport Transport, timer *Timer, offset time.Duration, index int) (StepResult, error)

// Step is one named unit of work in a script.
type Step struct {
	// Name is used for diagnostics and per-step statistics
	Name string

	// Func performs the request
	Func StepFunc
}

// StepResult is a single measurement.
type StepResult struct {
	// Offset is the time since the period began when the step started
	Offset time.Duration `json:"offset"`

	// Step is the index of the script step that produced this result
	Step int `json:"step"`

	// ResponseTime is the time the single request took
	ResponseTime time.Duration `json:"responseTime"`

	// TimeToFirstByte is the wait between the request being sent and the
	// first response byte, zero when the transport does not report it
	TimeToFirstByte time.Duration `json:"timeToFirstByte,omitempty"`

	// ConnectTime is the DNS, TCP and TLS setup time of a new connection
	ConnectTime time.Duration `json:"connectTime,omitempty"`

	// NewConnection is set when the request could not reuse a connection
	NewConnection bool `json:"newConnection,omitempty"`

	// BytesReceived is the response body size as transferred
	BytesReceived int64 `json:"bytesReceived,omitempty"`

	// Failed is set when the request errored
	Failed bool `json:"failed,omitempty"`

	// Err is the request error for failed results
	Err error `json:"-"`
}

// OffsetMs returns the offset in milliseconds.
func (r StepResult) OffsetMs() int64 {
	return r.Offset.Milliseconds()
}

// ResponseTimeMs returns the response time in milliseconds.
func (r StepResult) ResponseTimeMs() int64 {
	return r.ResponseTime.Milliseconds()
}

// PeriodResult is the aggregate outcome of one load period.
type PeriodResult struct {
	// Length is the requested period length
	Length time.Duration `json:"length"`

	// Concurrency is the requested worker count
	Concurrency int `json:"concurrency"`

	// Elapsed is the wall-clock time until the last worker returned
	Elapsed time.Duration `json:"elapsed"`

	// StepResults are the completed measurements, ordered by offset
	StepResults []StepResult `json:"stepResults"`

	// Failures are the failed step executions, ordered by offset
	Failures []StepResult `json:"failures,omitempty"`
}

// LengthMs returns the requested period length in milliseconds.
func (p *PeriodResult) LengthMs() int64 {
	return p.Length.Milliseconds()
}

// Executions returns the number of step executions, failed or not.
func (p *PeriodResult) Executions() int {
	return len(p.StepResults) + len(p.Failures)
}

// Degenerate reports whether the period produced no measurement at all.
func (p *PeriodResult) Degenerate() bool {
	return len(p.StepResults) == 0
}

// MeanResponseTime returns the arithmetic mean of the measured response
// times. ok is false for a degenerate period, whose mean is undefined.
func (p *PeriodResult) MeanResponseTime() (mean time.Duration, ok bool) {
	if len(p.StepResults) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, r := range p.StepResults {
		total += r.ResponseTime
	}
	return total / time.Duration(len(p.StepResults)), true
}

// Timer is a restartable stopwatch, owned by one worker.
type Timer struct {
	start   time.Time
	elapsed time.Duration
	running bool
}

// StartTimer returns a running timer.
func StartTimer() *Timer {
	t := &Timer{}
	t.Restart()
	return t
}

// Restart resets the elapsed time to zero and starts the timer.
func (t *Timer) Restart() {
	t.start = time.Now()
	t.elapsed = 0
	t.running = true
}

// Stop freezes the elapsed time.
func (t *Timer) Stop() {
	if t.running {
		t.elapsed = time.Since(t.start)
		t.running = false
	}
}

// Elapsed returns the elapsed time, live while the timer runs.
func (t *Timer) Elapsed() time.Duration {
	if t.running {
		return time.Since(t.start)
	}
	return t.elapsed
}
