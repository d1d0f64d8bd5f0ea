// Package output renders throughput search progress and results.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/loader/internal/search"
)

const ruleWidth = 56

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	// Name is shown in the header and the terminal title
	Name string

	Writer io.Writer

	// Quiet prints only the final verdict
	Quiet bool

	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// Console prints search progress as it happens. Its Observe method is a
// search.Observer.
type Console struct {
	name   string
	writer io.Writer
	quiet  bool
	isTTY  bool
	colors *ColorScheme
	plain  bool

	mu sync.Mutex
}

// NewConsole creates a console progress printer.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := !config.NoColor && (config.ForceColors || (isTTY && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = ForcedColorScheme()
	}

	return &Console{
		name:   config.Name,
		writer: config.Writer,
		quiet:  config.Quiet,
		isTTY:  isTTY,
		colors: colors,
		plain:  !useColors,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(cfg search.Config, steps int) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.name
	if name == "" {
		name = "loader"
	}
	rule := strings.Repeat("━", ruleWidth)

	c.writeln(c.colors.Rule.Sprint(rule))
	c.writeln(c.colors.Title.Sprintf("%s - throughput search", name))
	c.writeln(c.colors.Rule.Sprint(rule))
	c.writeln(fmt.Sprintf("%s mean < %s   %s %s   %s %d   %s %d",
		c.colors.Label.Sprint("Target:"), c.colors.Value.Sprint(formatDurationShort(cfg.ResponseTimeTarget)),
		c.colors.Label.Sprint("Period:"), c.colors.Value.Sprint(formatDuration(cfg.PeriodLength)),
		c.colors.Label.Sprint("Start:"), cfg.InitialThroughput,
		c.colors.Label.Sprint("Steps:"), steps))
	c.writeln("")
}

// Observe handles a progress event.
func (c *Console) Observe(event search.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch event.Type {
	case search.EventPeriodStarted:
		c.setTitle(fmt.Sprintf("%s: period %d, %d workers (%s)", c.titleName(), event.Period, event.Candidate, event.Mode))
	case search.EventPeriodCompleted:
		if !c.quiet && event.Summary != nil {
			c.writeln(c.periodLine(event.Summary))
		}
	case search.EventModeChanged:
		if !c.quiet {
			c.writeln(c.modeLine(event))
		}
	case search.EventSearchFinished:
		if event.Result != nil {
			c.setTitle(fmt.Sprintf("%s: max %d", c.titleName(), event.Result.MaxThroughput))
			c.printSummary(event.Result)
		}
	}
}

// periodLine renders one completed period.
func (c *Console) periodLine(s *search.PeriodSummary) string {
	verdict := c.colors.Pass.Sprint("pass")
	icon := PassIcon(c.plain)
	if !s.Success {
		verdict = c.colors.Miss.Sprint("miss")
		icon = MissIcon(c.plain)
	}

	mean := formatDurationShort(s.MeanResponseTime)
	if s.Degenerate {
		mean = "n/a"
	}

	failures := fmt.Sprintf("%d", s.Failures)
	if s.Failures > 0 {
		failures = c.colors.Warn.Sprint(failures)
	}

	return fmt.Sprintf("#%-3d %s workers %s  %s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		s.Period,
		c.modeLabel(s.Mode),
		c.colors.Value.Sprintf("%5d", s.Concurrency),
		c.colors.Label.Sprint("rps"), fmt.Sprintf("%9.2f", s.AchievedThroughput),
		c.colors.Label.Sprint("mean"), fmt.Sprintf("%7s", mean),
		c.colors.Label.Sprint("p95"), fmt.Sprintf("%7s", formatDurationShort(s.Latency.P95)),
		c.colors.Label.Sprint("hits"), formatNumber(int64(s.Samples)),
		c.colors.Label.Sprint("errors"), failures,
		icon, verdict)
}

func (c *Console) modeLine(event search.Event) string {
	if event.Mode == search.ModeTerminal {
		return c.colors.Label.Sprintf("  → %s", event.Mode)
	}
	return fmt.Sprintf("  → %s from %d workers", c.modeLabel(event.Mode), event.Candidate)
}

func (c *Console) modeLabel(mode search.Mode) string {
	label := fmt.Sprintf("%-8s", mode)
	switch mode {
	case search.ModeProbing:
		return c.colors.Probing.Sprint(label)
	case search.ModeRefining:
		return c.colors.Refining.Sprint(label)
	default:
		return c.colors.Terminal.Sprint(label)
	}
}

func (c *Console) printSummary(result *search.Result) {
	if c.quiet {
		if result.MaxThroughput > 0 {
			c.writeln(fmt.Sprintf("MAX THROUGHPUT: %d (%s)", result.MaxThroughput, result.Reason))
		} else {
			c.writeln(c.colors.Miss.Sprintf("NO SUSTAINABLE THROUGHPUT (%s)", result.Reason))
		}
		return
	}

	rule := strings.Repeat("━", ruleWidth)
	c.writeln("")
	c.writeln(c.colors.Rule.Sprint(rule))

	switch {
	case result.MaxThroughput == 0:
		c.writeln(c.colors.Miss.Sprint("No sustainable throughput found"))
	case result.Converged():
		c.writeln(c.colors.Highlight.Sprintf("Max sustainable throughput: %d workers", result.MaxThroughput))
	default:
		c.writeln(c.colors.Warn.Sprintf("Best throughput so far: %d workers", result.MaxThroughput))
	}
	c.writeln(c.colors.Rule.Sprint(rule))

	c.writeln(fmt.Sprintf("Stop reason:   %s", c.colors.Value.Sprint(result.Reason)))
	c.writeln(fmt.Sprintf("Periods:       %s", c.colors.Value.Sprint(len(result.Summaries))))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.EndTime.Sub(result.StartTime)))))

	if best := bestPeriod(result); best != nil {
		c.writeln(fmt.Sprintf("At that level:  %s req/s, mean %s, p95 %s, ttfb %s",
			c.colors.Value.Sprintf("%.2f", best.AchievedThroughput),
			c.colors.Value.Sprint(formatDurationShort(best.MeanResponseTime)),
			c.colors.Value.Sprint(formatDurationShort(best.Latency.P95)),
			c.colors.Value.Sprint(formatDurationShort(best.MeanTimeToFirstByte))))
		c.writeln(fmt.Sprintf("Traffic:       %s received, %s new connections",
			c.colors.Value.Sprint(formatBytes(best.BytesReceived)),
			c.colors.Value.Sprint(formatNumber(int64(best.NewConnections)))))

		if len(best.Steps) > 1 {
			c.writeln("")
			c.writeln(c.colors.Title.Sprint("Steps:"))
			for _, st := range best.Steps {
				c.writeln(fmt.Sprintf("  %-24s mean %7s  p95 %7s  ttfb %7s  connect %7s  errors %d",
					truncate(st.Name, 24),
					formatDurationShort(st.Latency.Mean),
					formatDurationShort(st.Latency.P95),
					formatDurationShort(st.MeanTimeToFirstByte),
					formatDurationShort(st.MeanConnectTime),
					st.Failures))
			}
		}
	}
	c.writeln("")
}

// bestPeriod returns the last passing period at the reported maximum.
func bestPeriod(result *search.Result) *search.PeriodSummary {
	for i := len(result.Summaries) - 1; i >= 0; i-- {
		s := &result.Summaries[i]
		if s.Success && s.Concurrency == result.MaxThroughput {
			return s
		}
	}
	return nil
}

func (c *Console) titleName() string {
	if c.name != "" {
		return c.name
	}
	return "loader"
}

func (c *Console) setTitle(title string) {
	if c.isTTY && !c.quiet {
		fmt.Fprint(c.writer, titleSequence(title))
	}
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// formatDurationShort formats a latency.
func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 || len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
