package search

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds, in microseconds: 1µs to 1h with 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// LatencyStats contains latency statistics for a set of measurements.
type LatencyStats struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Count int64         `json:"count"`
}

// StepStats contains per-step statistics within a period.
type StepStats struct {
	Index    int          `json:"index"`
	Name     string       `json:"name"`
	Failures int          `json:"failures"`
	Latency  LatencyStats `json:"latency"`

	// MeanTimeToFirstByte is averaged over the step's measurements
	MeanTimeToFirstByte time.Duration `json:"meanTimeToFirstByte"`

	// MeanConnectTime is averaged over the step's new connections only
	MeanConnectTime time.Duration `json:"meanConnectTime"`

	NewConnections int   `json:"newConnections"`
	BytesReceived  int64 `json:"bytesReceived"`
}

// PeriodSummary is the reduced view of a period the controller decides on
// and reporters print.
type PeriodSummary struct {
	// Period is the 1-based sequence number of the period in the search
	Period int `json:"period"`

	// Concurrency is the candidate throughput (worker count) of the period
	Concurrency int `json:"concurrency"`

	// Mode is the controller mode the period ran in
	Mode Mode `json:"mode"`

	Elapsed  time.Duration `json:"elapsed"`
	Samples  int           `json:"samples"`
	Failures int           `json:"failures"`

	// AchievedThroughput is step executions per second of actual elapsed time
	AchievedThroughput float64 `json:"achievedThroughput"`

	// ErrorRate is the fraction of step executions that failed
	ErrorRate float64 `json:"errorRate"`

	// MeanResponseTime is the exact arithmetic mean, zero when Degenerate
	MeanResponseTime time.Duration `json:"meanResponseTime"`

	// Degenerate is set when the period produced no measurement
	Degenerate bool `json:"degenerate,omitempty"`

	// MeanTimeToFirstByte is averaged over all measurements
	MeanTimeToFirstByte time.Duration `json:"meanTimeToFirstByte"`

	// NewConnections counts executions, failed or not, that dialed
	NewConnections int `json:"newConnections"`

	// BytesReceived is the body traffic of all executions, failed or not
	BytesReceived int64 `json:"bytesReceived"`

	Latency LatencyStats `json:"latency"`
	Steps   []StepStats  `json:"steps,omitempty"`

	// Success reports whether the period met the response time target
	Success bool `json:"success"`
}

// Summarize reduces a period to its summary. stepNames labels the per-step
// breakdown and may be shorter than the script.
func Summarize(result *PeriodResult, stepNames []string) PeriodSummary {
	summary := PeriodSummary{
		Concurrency: result.Concurrency,
		Elapsed:     result.Elapsed,
		Samples:     len(result.StepResults),
		Failures:    len(result.Failures),
	}

	if executions := result.Executions(); executions > 0 {
		if secs := result.Elapsed.Seconds(); secs > 0 {
			summary.AchievedThroughput = math.Round(float64(executions)/secs*100) / 100
		}
		summary.ErrorRate = float64(summary.Failures) / float64(executions)
	}

	mean, ok := result.MeanResponseTime()
	summary.MeanResponseTime = mean
	summary.Degenerate = !ok

	overall := newHistogram()
	perStep := make(map[int]*hdrhistogram.Histogram)
	failuresPerStep := make(map[int]int)
	traffic := make(map[int]*stepTraffic)
	stepTrafficOf := func(idx int) *stepTraffic {
		t, exists := traffic[idx]
		if !exists {
			t = &stepTraffic{}
			traffic[idx] = t
		}
		return t
	}

	var total stepTraffic
	for _, r := range result.StepResults {
		recordLatency(overall, r.ResponseTime)
		h, exists := perStep[r.Step]
		if !exists {
			h = newHistogram()
			perStep[r.Step] = h
		}
		recordLatency(h, r.ResponseTime)

		total.addMeasurement(r)
		stepTrafficOf(r.Step).addMeasurement(r)
	}
	for _, r := range result.Failures {
		failuresPerStep[r.Step]++
		total.addTraffic(r)
		stepTrafficOf(r.Step).addTraffic(r)
	}

	summary.Latency = latencyStats(overall)
	summary.Latency.Mean = mean
	summary.MeanTimeToFirstByte = total.meanTimeToFirstByte()
	summary.NewConnections = total.newConnections
	summary.BytesReceived = total.bytes

	steps := len(stepNames)
	for idx := range perStep {
		steps = max(steps, idx+1)
	}
	for idx := range failuresPerStep {
		steps = max(steps, idx+1)
	}
	for idx := 0; idx < steps; idx++ {
		st := StepStats{Index: idx, Failures: failuresPerStep[idx]}
		if idx < len(stepNames) {
			st.Name = stepNames[idx]
		}
		if h, exists := perStep[idx]; exists {
			st.Latency = latencyStats(h)
		}
		if t, exists := traffic[idx]; exists {
			st.MeanTimeToFirstByte = t.meanTimeToFirstByte()
			st.MeanConnectTime = t.meanConnectTime()
			st.NewConnections = t.newConnections
			st.BytesReceived = t.bytes
		}
		summary.Steps = append(summary.Steps, st)
	}

	return summary
}

// stepTraffic accumulates the transport-level figures of a set of executions.
type stepTraffic struct {
	measurements   int
	ttfb           time.Duration
	newConnections int
	connect        time.Duration
	bytes          int64
}

func (t *stepTraffic) addMeasurement(r StepResult) {
	t.measurements++
	t.ttfb += r.TimeToFirstByte
	t.addTraffic(r)
}

func (t *stepTraffic) addTraffic(r StepResult) {
	t.bytes += r.BytesReceived
	if r.NewConnection {
		t.newConnections++
		t.connect += r.ConnectTime
	}
}

func (t *stepTraffic) meanTimeToFirstByte() time.Duration {
	if t.measurements == 0 {
		return 0
	}
	return t.ttfb / time.Duration(t.measurements)
}

func (t *stepTraffic) meanConnectTime() time.Duration {
	if t.newConnections == 0 {
		return 0
	}
	return t.connect / time.Duration(t.newConnections)
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
}

func recordLatency(h *hdrhistogram.Histogram, d time.Duration) {
	micros := d.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}
	_ = h.RecordValue(micros)
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Min:   time.Duration(h.Min()) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
		Mean:  time.Duration(h.Mean()) * time.Microsecond,
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:   time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count: h.TotalCount(),
	}
}
