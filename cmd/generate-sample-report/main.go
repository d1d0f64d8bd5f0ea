// Command generate-sample-report runs a throughput search against a simulated
// service and writes the resulting report in every format.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/loader/internal/output"
	"github.com/wesleyorama2/loader/internal/search"
)

// simulatedService is a search.PeriodRunner whose latency grows with the
// number of workers once they exceed its capacity. No request is sent.
type simulatedService struct {
	capacity  float64
	base      time.Duration
	errorRate float64
	rng       *rand.Rand
}

func (s *simulatedService) RunPeriod(ctx context.Context, periodLength time.Duration, concurrency int, script []search.Step) (*search.PeriodResult, error) {
	load := float64(concurrency) / s.capacity
	mean := float64(s.base) * (1 + math.Pow(load, 3))

	result := &search.PeriodResult{
		Length:      periodLength,
		Concurrency: concurrency,
		Elapsed:     periodLength + time.Duration(s.rng.Intn(50))*time.Millisecond,
	}

	perWorker := int(float64(periodLength) / mean)
	for w := 0; w < concurrency; w++ {
		offset := time.Duration(0)
		for i := 0; i < perWorker; i++ {
			for idx := range script {
				latency := time.Duration(mean * (0.5 + s.rng.ExpFloat64()*0.5))
				r := search.StepResult{
					Offset:          offset,
					Step:            idx,
					ResponseTime:    latency,
					TimeToFirstByte: latency * 4 / 5,
					BytesReceived:   int64(800 + s.rng.Intn(400)),
				}
				if i == 0 {
					// Each worker dials once, then keeps its connection alive.
					r.NewConnection = true
					r.ConnectTime = time.Duration(1+s.rng.Intn(3)) * time.Millisecond
				}
				if s.rng.Float64() < s.errorRate*load {
					r.Failed = true
					r.Err = fmt.Errorf("%s: status 503", script[idx].Name)
					result.Failures = append(result.Failures, r)
				} else {
					result.StepResults = append(result.StepResults, r)
				}
				offset += latency
			}
		}
	}
	return result, nil
}

func sampleScript() []search.Step {
	noop := func(ctx context.Context, transport search.Transport, timer *search.Timer, offset time.Duration, index int) (search.StepResult, error) {
		return search.StepResult{}, nil
	}
	return []search.Step{
		{Name: "GET /products", Func: noop},
		{Name: "GET /products/{{id}}", Func: noop},
		{Name: "POST /cart", Func: noop},
	}
}

func main() {
	outputDir := "sample-reports"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	cfg := search.DefaultConfig()
	cfg.ResponseTimeTarget = 200 * time.Millisecond
	cfg.PeriodLength = 10 * time.Second

	service := &simulatedService{
		capacity:  60,
		base:      40 * time.Millisecond,
		errorRate: 0.01,
		rng:       rand.New(rand.NewSource(42)),
	}

	console := output.NewConsole(output.ConsoleConfig{Name: "Sample checkout API"})
	controller := search.NewController(service, sampleScript(), cfg, search.WithObserver(console.Observe))

	console.PrintHeader(cfg, len(sampleScript()))
	result, err := controller.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var g errgroup.Group
	for _, format := range []output.ReportFormat{output.FormatJSON, output.FormatYAML, output.FormatJUnit, output.FormatHTML} {
		path := filepath.Join(outputDir, "sample-report."+extension(format))
		g.Go(func() error {
			if err := output.WriteReportFile(path, "Sample checkout API", result, format); err != nil {
				return err
			}
			fmt.Printf("Sample report generated: %s\n", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func extension(format output.ReportFormat) string {
	if format == output.FormatJUnit {
		return "xml"
	}
	return string(format)
}
