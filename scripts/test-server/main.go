// Command test-server is a demo target for throughput searches. Its
// response time grows with the number of requests in flight, so a search
// against it converges near -capacity.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/loader/internal/logging"
)

// saturatingHandler delays each response by base*(1+(inflight/capacity)^3).
type saturatingHandler struct {
	base     time.Duration
	capacity float64
	inflight atomic.Int64
	served   atomic.Int64
}

func (h *saturatingHandler) delay(inflight int64) time.Duration {
	load := float64(inflight) / h.capacity
	return time.Duration(float64(h.base) * (1 + load*load*load))
}

func (h *saturatingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.inflight.Add(1)
	defer h.inflight.Add(-1)

	select {
	case <-time.After(h.delay(n)):
	case <-r.Context().Done():
		return
	}
	h.served.Add(1)

	status := http.StatusOK
	if code := r.PathValue("code"); code != "" {
		parsed, err := strconv.Atoi(code)
		if err != nil || parsed < 100 || parsed > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		status = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"inflight": n,
	})
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	capacity := flag.Int("capacity", 50, "in-flight requests at which latency doubles")
	base := flag.Duration("base", 20*time.Millisecond, "response time when idle")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(logging.Options{Level: *logLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *capacity < 1 {
		logger.Fatal("capacity must be at least 1", zap.Int("capacity", *capacity))
	}

	handler := &saturatingHandler{base: *base, capacity: float64(*capacity)}

	mux := http.NewServeMux()
	mux.Handle("GET /", handler)
	mux.Handle("GET /status/{code}", handler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "healthy")
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("test server listening",
		zap.String("addr", *addr),
		zap.Int("capacity", *capacity),
		zap.Duration("base", *base))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("test server stopped", zap.Int64("served", handler.served.Load()))
}
