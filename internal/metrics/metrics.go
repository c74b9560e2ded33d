// Package metrics exposes run-level Prometheus counters/gauges, grounded
// on Junivor-DoAn-Finpull's pkg/metrics/prometheus.go Recorder. Every
// cmd/backtest run records into it; /metrics is served only when
// --metrics-addr is set. The engine, week
// driver, and provider packages never import prometheus directly —
// only the CLI layer that owns the Recorder does.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the run's metrics sink.
type Recorder struct {
	tradesFilled   *prometheus.CounterVec
	symbolsSkipped *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

var (
	sharedOnce     sync.Once
	sharedRecorder *Recorder
)

// New returns the process-wide Recorder. Its collectors live on the
// default Prometheus registry, so they are registered once and every
// later call returns the same Recorder.
func New() *Recorder {
	sharedOnce.Do(func() { sharedRecorder = newRecorder() })
	return sharedRecorder
}

func newRecorder() *Recorder {
	return &Recorder{
		tradesFilled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnbacktest_trades_filled_total",
				Help: "Total number of closed trades, by symbol and exit reason.",
			},
			[]string{"symbol", "reason"},
		),
		symbolsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnbacktest_symbols_skipped_total",
				Help: "Total number of symbol/week pairs skipped, by reason.",
			},
			[]string{"reason"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vnbacktest_run_duration_seconds",
				Help:    "Wall-clock duration of a full backtest run.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordFill records one closed trade leaving the engine.
func (r *Recorder) RecordFill(symbol, reason string) {
	r.tradesFilled.WithLabelValues(symbol, reason).Inc()
}

// RecordSkip records one symbol skipped for insufficient history, a
// sizing rejection, or a provider error, per spec.md §7.
func (r *Recorder) RecordSkip(reason string) {
	r.symbolsSkipped.WithLabelValues(reason).Inc()
}

// RecordRunDuration records the total run time.
func (r *Recorder) RecordRunDuration(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
}

// Serve exposes /metrics until ctx is cancelled. Grounded on
// Junivor-DoAn-Finpull's pkg/http/server.go route registration, using
// net/http directly rather than echo since the CLI has no other routes.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
