package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/loader/internal/search"
)

// ReportFormat represents the available report formats
type ReportFormat string

const (
	// FormatJSON writes the report as indented JSON
	FormatJSON ReportFormat = "json"
	// FormatYAML writes the report as YAML
	FormatYAML ReportFormat = "yaml"
	// FormatJUnit writes one test case per period (for CI/CD integration)
	FormatJUnit ReportFormat = "junit"
	// FormatHTML writes a standalone HTML page with a period table and chart
	FormatHTML ReportFormat = "html"
)

// ParseReportFormat parses a format name. An empty name selects JSON.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "junit", "xml":
		return FormatJUnit, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json, yaml, junit or html)", s)
	}
}

// FormatFromPath guesses the report format from a file extension.
func FormatFromPath(path string) ReportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xml":
		return FormatJUnit
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatJSON
	}
}

// Report is the serializable form of a search result. Durations are in
// milliseconds.
type Report struct {
	Name          string         `json:"name,omitempty" yaml:"name,omitempty"`
	RunID         string         `json:"runId" yaml:"runId"`
	StartTime     string         `json:"startTime" yaml:"startTime"`
	EndTime       string         `json:"endTime" yaml:"endTime"`
	DurationMs    int64          `json:"durationMs" yaml:"durationMs"`
	MaxThroughput int            `json:"maxThroughput" yaml:"maxThroughput"`
	Reason        string         `json:"reason" yaml:"reason"`
	FinalMode     string         `json:"finalMode" yaml:"finalMode"`
	Config        ReportConfig   `json:"config" yaml:"config"`
	Periods       []PeriodReport `json:"periods" yaml:"periods"`
}

// ReportConfig is the search configuration a report was produced with.
type ReportConfig struct {
	ResponseTimeTargetMs float64 `json:"responseTimeTargetMs" yaml:"responseTimeTargetMs"`
	PeriodLengthMs       int64   `json:"periodLengthMs" yaml:"periodLengthMs"`
	InitialThroughput    int     `json:"initialThroughput" yaml:"initialThroughput"`
	GrowthFactor         float64 `json:"growthFactor" yaml:"growthFactor"`
	RefinementRatio      float64 `json:"refinementRatio" yaml:"refinementRatio"`
	ExitOnSecondFailure  bool    `json:"exitOnSecondFailure" yaml:"exitOnSecondFailure"`
	MaxPeriods           int     `json:"maxPeriods,omitempty" yaml:"maxPeriods,omitempty"`
	MaxErrorRate         float64 `json:"maxErrorRate,omitempty" yaml:"maxErrorRate,omitempty"`
}

// PeriodReport is one period of a report.
type PeriodReport struct {
	Period             int          `json:"period" yaml:"period"`
	Mode               string       `json:"mode" yaml:"mode"`
	Concurrency        int          `json:"concurrency" yaml:"concurrency"`
	ElapsedMs          int64        `json:"elapsedMs" yaml:"elapsedMs"`
	Samples            int          `json:"samples" yaml:"samples"`
	Failures           int          `json:"failures" yaml:"failures"`
	ErrorRate          float64      `json:"errorRate" yaml:"errorRate"`
	AchievedThroughput float64      `json:"achievedThroughput" yaml:"achievedThroughput"`
	MeanResponseTimeMs float64      `json:"meanResponseTimeMs" yaml:"meanResponseTimeMs"`
	MeanTTFBMs         float64      `json:"meanTtfbMs" yaml:"meanTtfbMs"`
	NewConnections     int          `json:"newConnections" yaml:"newConnections"`
	BytesReceived      int64        `json:"bytesReceived" yaml:"bytesReceived"`
	Degenerate         bool         `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`
	Success            bool         `json:"success" yaml:"success"`
	Latency            LatencyMs    `json:"latency" yaml:"latency"`
	Steps              []StepReport `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// StepReport is the per-step breakdown of a period.
type StepReport struct {
	Name           string    `json:"name" yaml:"name"`
	Failures       int       `json:"failures" yaml:"failures"`
	Latency        LatencyMs `json:"latency" yaml:"latency"`
	MeanTTFBMs     float64   `json:"meanTtfbMs" yaml:"meanTtfbMs"`
	MeanConnectMs  float64   `json:"meanConnectMs" yaml:"meanConnectMs"`
	NewConnections int       `json:"newConnections" yaml:"newConnections"`
	BytesReceived  int64     `json:"bytesReceived" yaml:"bytesReceived"`
}

// LatencyMs holds latency statistics in milliseconds.
type LatencyMs struct {
	Min  float64 `json:"min" yaml:"min"`
	Mean float64 `json:"mean" yaml:"mean"`
	P50  float64 `json:"p50" yaml:"p50"`
	P90  float64 `json:"p90" yaml:"p90"`
	P95  float64 `json:"p95" yaml:"p95"`
	P99  float64 `json:"p99" yaml:"p99"`
	Max  float64 `json:"max" yaml:"max"`
}

// NewReport builds a report from a search result.
func NewReport(name string, result *search.Result) *Report {
	cfg := result.Config
	report := &Report{
		Name:          name,
		RunID:         result.RunID,
		StartTime:     result.StartTime.Format(time.RFC3339),
		EndTime:       result.EndTime.Format(time.RFC3339),
		DurationMs:    result.EndTime.Sub(result.StartTime).Milliseconds(),
		MaxThroughput: result.MaxThroughput,
		Reason:        string(result.Reason),
		FinalMode:     result.FinalMode.String(),
		Config: ReportConfig{
			ResponseTimeTargetMs: millis(cfg.ResponseTimeTarget),
			PeriodLengthMs:       cfg.PeriodLength.Milliseconds(),
			InitialThroughput:    cfg.InitialThroughput,
			GrowthFactor:         cfg.GrowthFactor,
			RefinementRatio:      cfg.RefinementRatio,
			ExitOnSecondFailure:  cfg.ExitOnSecondFailure,
			MaxPeriods:           cfg.MaxPeriods,
			MaxErrorRate:         cfg.MaxErrorRate,
		},
		Periods: make([]PeriodReport, 0, len(result.Summaries)),
	}

	for _, s := range result.Summaries {
		p := PeriodReport{
			Period:             s.Period,
			Mode:               s.Mode.String(),
			Concurrency:        s.Concurrency,
			ElapsedMs:          s.Elapsed.Milliseconds(),
			Samples:            s.Samples,
			Failures:           s.Failures,
			ErrorRate:          s.ErrorRate,
			AchievedThroughput: s.AchievedThroughput,
			MeanResponseTimeMs: millis(s.MeanResponseTime),
			MeanTTFBMs:         millis(s.MeanTimeToFirstByte),
			NewConnections:     s.NewConnections,
			BytesReceived:      s.BytesReceived,
			Degenerate:         s.Degenerate,
			Success:            s.Success,
			Latency:            latencyMs(s.Latency),
		}
		for _, st := range s.Steps {
			p.Steps = append(p.Steps, StepReport{
				Name:           st.Name,
				Failures:       st.Failures,
				Latency:        latencyMs(st.Latency),
				MeanTTFBMs:     millis(st.MeanTimeToFirstByte),
				MeanConnectMs:  millis(st.MeanConnectTime),
				NewConnections: st.NewConnections,
				BytesReceived:  st.BytesReceived,
			})
		}
		report.Periods = append(report.Periods, p)
	}

	return report
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func latencyMs(l search.LatencyStats) LatencyMs {
	return LatencyMs{
		Min:  millis(l.Min),
		Mean: millis(l.Mean),
		P50:  millis(l.P50),
		P90:  millis(l.P90),
		P95:  millis(l.P95),
		P99:  millis(l.P99),
		Max:  millis(l.Max),
	}
}

// WriteReport writes the report for result to w in the given format.
func WriteReport(w io.Writer, name string, result *search.Result, format ReportFormat) error {
	report := NewReport(name, result)

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatJUnit:
		return writeJUnit(w, report)
	case FormatHTML:
		return writeHTML(w, report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteReportFile writes the report to path, creating parent directories.
func WriteReportFile(path, name string, result *search.Result, format ReportFormat) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := WriteReport(f, name, result, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitProperty is a name/value pair attached to a suite
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

func writeJUnit(w io.Writer, report *Report) error {
	suiteName := report.Name
	if suiteName == "" {
		suiteName = "loader"
	}

	suite := JUnitTestSuite{
		Name:      suiteName,
		Tests:     len(report.Periods),
		Time:      float64(report.DurationMs) / 1000,
		Timestamp: report.StartTime,
		Properties: []JUnitProperty{
			{Name: "runId", Value: report.RunID},
			{Name: "maxThroughput", Value: fmt.Sprint(report.MaxThroughput)},
			{Name: "reason", Value: report.Reason},
			{Name: "responseTimeTargetMs", Value: fmt.Sprint(report.Config.ResponseTimeTargetMs)},
		},
	}

	for _, p := range report.Periods {
		tc := JUnitTestCase{
			Name:      fmt.Sprintf("period %d: %d workers (%s)", p.Period, p.Concurrency, p.Mode),
			Classname: "loader." + suiteName,
			Time:      float64(p.ElapsedMs) / 1000,
			SystemOut: fmt.Sprintf("achievedThroughput=%.2f samples=%d failures=%d p95Ms=%.3f",
				p.AchievedThroughput, p.Samples, p.Failures, p.Latency.P95),
		}
		if !p.Success {
			tc.Failure = periodFailure(p, report.Config)
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	output, err := xml.MarshalIndent(JUnitTestSuites{TestSuites: []JUnitTestSuite{suite}}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal junit report: %w", err)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(output); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func periodFailure(p PeriodReport, cfg ReportConfig) *JUnitFailure {
	switch {
	case p.Degenerate:
		return &JUnitFailure{
			Message: "period produced no successful measurement",
			Type:    "NoMeasurement",
			Content: fmt.Sprintf("%d failures", p.Failures),
		}
	case p.MeanResponseTimeMs >= cfg.ResponseTimeTargetMs:
		return &JUnitFailure{
			Message: fmt.Sprintf("mean response time %.3fms, target < %.3fms", p.MeanResponseTimeMs, cfg.ResponseTimeTargetMs),
			Type:    "ResponseTimeTarget",
		}
	default:
		return &JUnitFailure{
			Message: fmt.Sprintf("error rate %.4f above %.4f", p.ErrorRate, cfg.MaxErrorRate),
			Type:    "ErrorRate",
		}
	}
}
