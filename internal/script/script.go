// Package script turns configured request steps into executable search steps.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/loader/internal/config"
	http "github.com/wesleyorama2/loader/internal/http"
	"github.com/wesleyorama2/loader/internal/search"
)

// Build converts the configured script into search steps.
//
// Variables are resolved once here; the returned steps are immutable and
// safe to share between workers.
func Build(cfg *config.RunConfig) ([]search.Step, error) {
	if len(cfg.Script) == 0 {
		return nil, search.ErrEmptyScript
	}

	steps := make([]search.Step, 0, len(cfg.Script))
	for i, sc := range cfg.Script {
		step, err := buildStep(cfg, sc)
		if err != nil {
			return nil, fmt.Errorf("script[%d]: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(cfg *config.RunConfig, sc config.StepConfig) (search.Step, error) {
	resolve := func(s string) string {
		return config.ResolveVariables(s, cfg.Variables, &cfg.Settings)
	}

	req := http.NewRequest(sc.Method, resolve(sc.URL))
	for key, value := range config.ResolveMap(sc.Headers, cfg.Variables, &cfg.Settings) {
		req.WithHeader(key, value)
	}
	for key, value := range config.ResolveMap(sc.Query, cfg.Variables, &cfg.Settings) {
		req.WithQueryParam(key, value)
	}
	if sc.Body != "" {
		req.WithBody([]byte(resolve(sc.Body)))
	}

	checks, err := compileExpectation(sc.Expect)
	if err != nil {
		return search.Step{}, err
	}

	name := sc.Name
	return search.Step{
		Name: name,
		Func: func(ctx context.Context, transport search.Transport, timer *search.Timer, offset time.Duration, index int) (search.StepResult, error) {
			timer.Restart()
			resp, err := transport.Do(ctx, req)
			timer.Stop()

			result := search.StepResult{ResponseTime: timer.Elapsed()}
			if err != nil {
				return result, fmt.Errorf("%s: %w", name, err)
			}
			result.TimeToFirstByte = resp.Timing.TimeToFirstByte
			result.NewConnection = !resp.Timing.ConnectionReused
			result.ConnectTime = resp.Timing.ConnectTime()
			result.BytesReceived = resp.BytesReceived
			if err := checks.verify(resp); err != nil {
				return result, &ExpectationError{Step: name, Err: err}
			}
			return result, nil
		},
	}, nil
}

// NewTransportFactory returns a factory creating one HTTP client per worker,
// configured from the run settings.
func NewTransportFactory(cfg *config.RunConfig) search.TransportFactory {
	settings := cfg.Settings
	headers := config.ResolveMap(settings.Headers, cfg.Variables, &settings)

	return func() search.Transport {
		opts := []http.ClientOption{
			http.WithTimeout(settings.Timeout.GetDuration(config.DefaultTimeout)),
			http.WithHeaders(headers),
			http.WithGzip(!settings.DisableGzip),
			http.WithInsecureSkipVerify(settings.InsecureSkipVerify),
		}
		if settings.BaseURL != "" {
			opts = append(opts, http.WithBaseURL(settings.BaseURL))
		}
		if settings.UserAgent != "" {
			opts = append(opts, http.WithHeader("User-Agent", settings.UserAgent))
		}
		return http.NewClient(opts...)
	}
}
