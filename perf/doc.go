// Package perf runs throughput searches programmatically.
//
// A search replays a script of HTTP requests with a growing number of
// concurrent workers, one load period at a time, and reports the highest
// worker count whose mean response time stayed below the target.
//
// # Quick Start
//
//	cfg, err := perf.LoadConfig("checkout.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := perf.NewRunner(cfg).Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Max throughput: %d (%s)\n", result.MaxThroughput, result.Reason)
//
// # Building a Configuration
//
//	cfg := &perf.Config{
//	    Name:     "health",
//	    Settings: perf.Settings{BaseURL: "https://api.example.com"},
//	    Search: perf.SearchSettings{
//	        ResponseTimeTarget: perf.Ptr(perf.Duration(200 * time.Millisecond)),
//	        PeriodLength:       perf.Ptr(perf.Duration(10 * time.Second)),
//	    },
//	    Script: []perf.StepConfig{{Method: "GET", URL: "/health"}},
//	}
//
// # Progress
//
// Register an observer to follow the search as it runs:
//
//	runner := perf.NewRunner(cfg, perf.WithObserver(func(e perf.Event) {
//	    if e.Type == perf.EventPeriodCompleted {
//	        fmt.Printf("%d workers: mean %v\n", e.Candidate, e.Summary.MeanResponseTime)
//	    }
//	}))
package perf
