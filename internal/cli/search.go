package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/loader/internal/config"
	"github.com/wesleyorama2/loader/internal/logging"
	"github.com/wesleyorama2/loader/internal/output"
	"github.com/wesleyorama2/loader/internal/script"
	"github.com/wesleyorama2/loader/internal/search"
)

// errNoSustainableThroughput is returned when no period met the target, so
// that the process exits non-zero.
var errNoSustainableThroughput = errors.New("no sustainable throughput found")

var searchCmd = newSearchCmd()

// newSearchCmd creates the search command with its flags.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search for the maximum sustainable throughput",
		Long: `Run load periods with a growing number of concurrent workers until the mean
response time reaches the target, then refine just above the last passing level.

Config file mode:
  loader search --config checkout.yaml

Quick CLI mode (single request):
  loader search --url http://localhost:8080/health \
    --target 200ms \
    --period 10s

Flags given together with --config override the file.`,
		Args: cobra.NoArgs,
		RunE: runSearch,
	}
	addSearchFlags(cmd)
	return cmd
}

// runSearch runs a throughput search and reports the result.
func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadSearchConfig(cmd)
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	steps, err := script.Build(cfg)
	if err != nil {
		return err
	}

	searchCfg := cfg.ToSearchConfig()

	console := output.NewConsole(output.ConsoleConfig{
		Name:    cfg.Name,
		Writer:  cmd.OutOrStdout(),
		Quiet:   quiet,
		NoColor: noColor,
	})

	executor := search.NewExecutor(script.NewTransportFactory(cfg), search.WithExecutorLogger(logger))
	controller := search.NewController(executor, steps, searchCfg,
		search.WithLogger(logger),
		search.WithObserver(console.Observe),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.PrintHeader(searchCfg, len(steps))

	result, runErr := controller.Run(ctx)
	if result != nil {
		if err := writeReports(cmd, cfg.Name, result); err != nil {
			return err
		}
	}

	if runErr != nil {
		if errors.Is(runErr, ctx.Err()) {
			return fmt.Errorf("search interrupted: %w", runErr)
		}
		return fmt.Errorf("search failed: %w", runErr)
	}
	if result.MaxThroughput == 0 {
		return errNoSustainableThroughput
	}
	return nil
}

// loadSearchConfig loads --config or builds a configuration from the quick
// mode flags, then applies flag overrides.
func loadSearchConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	rawURL, _ := cmd.Flags().GetString("url")

	var cfg *config.RunConfig
	switch {
	case configFile != "":
		loaded, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case rawURL != "":
		method, _ := cmd.Flags().GetString("method")
		body, _ := cmd.Flags().GetString("data")
		cfg = buildConfigFromCLI(rawURL, method, body)
	default:
		return nil, fmt.Errorf("either --config or --url is required")
	}

	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return nil, err
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildConfigFromCLI builds a single-step configuration for rawURL.
func buildConfigFromCLI(rawURL, method, body string) *config.RunConfig {
	baseURL, path := parseURL(rawURL)
	if method == "" {
		method = "GET"
	}

	return &config.RunConfig{
		Name:     fmt.Sprintf("%s %s", strings.ToUpper(method), rawURL),
		Settings: config.Settings{BaseURL: baseURL},
		Script: []config.StepConfig{
			{
				Method: method,
				URL:    path,
				Body:   body,
			},
		},
	}
}

// applyFlagOverrides copies explicitly set flags onto cfg. A flag set to zero
// stays zero and fails validation.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.RunConfig) error {
	flags := cmd.Flags()
	s := &cfg.Search

	if flags.Changed("target") {
		v, _ := flags.GetString("target")
		d, err := config.ParseDurationString(v)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		s.ResponseTimeTarget = config.Ptr(config.Duration(d))
	}
	if flags.Changed("period") {
		v, _ := flags.GetString("period")
		d, err := config.ParseDurationString(v)
		if err != nil {
			return fmt.Errorf("--period: %w", err)
		}
		s.PeriodLength = config.Ptr(config.Duration(d))
	}
	if flags.Changed("initial") {
		initial, _ := flags.GetInt("initial")
		s.InitialThroughput = &initial
	}
	if flags.Changed("growth") {
		growth, _ := flags.GetFloat64("growth")
		s.GrowthFactor = &growth
	}
	if flags.Changed("refine") {
		refine, _ := flags.GetFloat64("refine")
		s.RefinementRatio = &refine
	}
	if flags.Changed("no-exit-on-second-failure") {
		noExit, _ := flags.GetBool("no-exit-on-second-failure")
		exit := !noExit
		s.ExitOnSecondFailure = &exit
	}
	if flags.Changed("max-periods") {
		s.MaxPeriods, _ = flags.GetInt("max-periods")
	}
	if flags.Changed("max-error-rate") {
		s.MaxErrorRate, _ = flags.GetFloat64("max-error-rate")
	}
	if flags.Changed("timeout") {
		timeout, _ := flags.GetDuration("timeout")
		cfg.Settings.Timeout = config.Duration(timeout)
	}
	if flags.Changed("insecure") {
		cfg.Settings.InsecureSkipVerify, _ = flags.GetBool("insecure")
	}
	if flags.Changed("name") {
		cfg.Name, _ = flags.GetString("name")
	}

	headers, _ := flags.GetStringArray("header")
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("--header %q: expected 'Name: value'", header)
		}
		if cfg.Settings.Headers == nil {
			cfg.Settings.Headers = make(map[string]string)
		}
		cfg.Settings.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return nil
}

// newLogger builds the logger from the logging flags. --verbose raises the
// default level to info.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if level == "" && verbose {
		level = "info"
	}
	return logging.New(logging.Options{Level: level, Format: logging.Format(format)})
}

// writeReports writes the --json and --output reports, if requested.
func writeReports(cmd *cobra.Command, name string, result *search.Result) error {
	jsonPath, _ := cmd.Flags().GetString("json")
	outputPath, _ := cmd.Flags().GetString("output")
	formatName, _ := cmd.Flags().GetString("format")
	quiet, _ := cmd.Flags().GetBool("quiet")

	if jsonPath != "" {
		if err := output.WriteReportFile(jsonPath, name, result, output.FormatJSON); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", jsonPath)
		}
	}

	if outputPath != "" {
		format := output.FormatFromPath(outputPath)
		if formatName != "" {
			parsed, err := output.ParseReportFormat(formatName)
			if err != nil {
				return err
			}
			format = parsed
		}
		if err := output.WriteReportFile(outputPath, name, result, format); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", outputPath)
		}
	}

	return nil
}

// parseURL splits a URL into base URL and path
func parseURL(fullURL string) (string, string) {
	// Add scheme if missing
	if !strings.HasPrefix(fullURL, "http://") && !strings.HasPrefix(fullURL, "https://") {
		fullURL = "http://" + fullURL
	}

	parsedURL, err := url.Parse(fullURL)
	if err != nil {
		return fullURL, "/"
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	if parsedURL.User != nil {
		baseURL = fmt.Sprintf("%s://%s@%s", parsedURL.Scheme, parsedURL.User.String(), parsedURL.Host)
	}

	path := parsedURL.Path
	if path == "" {
		path = "/"
	}
	if parsedURL.RawQuery != "" {
		path = path + "?" + parsedURL.RawQuery
	}

	return baseURL, path
}

func addSearchFlags(cmd *cobra.Command) {
	// Source flags
	cmd.Flags().StringP("config", "c", "", "Configuration file")
	cmd.Flags().String("url", "", "URL to search against (alternative to --config)")
	cmd.Flags().StringP("method", "X", "GET", "HTTP method for --url")
	cmd.Flags().StringP("data", "d", "", "Request body for --url")
	cmd.Flags().StringArrayP("header", "H", []string{}, "HTTP headers to include (can be used multiple times)")
	cmd.Flags().String("name", "", "Run name used in output and reports")

	// Search flags
	cmd.Flags().String("target", "", "Response time target, the mean must stay below it (e.g. 250ms)")
	cmd.Flags().String("period", "", "Length of each load period (e.g. 10s)")
	cmd.Flags().Int("initial", 0, "Initial number of concurrent workers")
	cmd.Flags().Float64("growth", 0, "Growth factor while probing")
	cmd.Flags().Float64("refine", 0, "Refinement ratio while refining")
	cmd.Flags().Bool("no-exit-on-second-failure", false, "Keep refining after a miss instead of stopping")
	cmd.Flags().Int("max-periods", 0, "Stop after this many periods (0 = unbounded)")
	cmd.Flags().Float64("max-error-rate", 0, "Fail periods whose error rate exceeds this fraction (0 = disabled)")

	// HTTP flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Request timeout")
	cmd.Flags().Bool("insecure", false, "Skip TLS certificate verification")

	// Reporting flags
	cmd.Flags().String("json", "", "Write a JSON report to this file")
	cmd.Flags().StringP("output", "o", "", "Write a report to this file (format from --format or the extension)")
	cmd.Flags().String("format", "", "Report format for --output (json, yaml, junit, html)")
	cmd.Flags().BoolP("quiet", "q", false, "Print only the final verdict")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	cmd.Flags().BoolP("verbose", "v", false, "Enable info logging")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "console", "Log format (console, json)")
}
