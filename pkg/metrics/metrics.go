// Package metrics exposes telemetry counters and the live store state to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

const metricPrefix = "vignelab_"

// Metrics bundles the collectors of one process.
type Metrics struct {
	LinesTotal      *prometheus.CounterVec
	SamplesTotal    prometheus.Counter
	ReadErrorsTotal prometheus.Counter
	RowsTotal       *prometheus.CounterVec
	StoreSamples    prometheus.Gauge
	StoreEvicted    prometheus.Gauge
	FieldValue      *prometheus.GaugeVec
	HealthState     *prometheus.GaugeVec
	TickDuration    prometheus.Histogram

	registry *prometheus.Registry
}

// New constructs the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		LinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lines_total",
				Help: "Telemetry lines by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "samples_committed_total",
			Help: "Samples committed to the store",
		}),
		ReadErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "read_errors_total",
			Help: "Line source read errors",
		}),
		RowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "csv_rows_total",
				Help: "CSV data rows by result",
			},
			[]string{"result"},
		),
		StoreSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "store_samples",
			Help: "Samples currently held by the store",
		}),
		StoreEvicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "store_evicted",
			Help: "Samples evicted from the bounded store",
		}),
		FieldValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "field_value",
				Help: "Latest value of each sensor field",
			},
			[]string{"field"},
		),
		HealthState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "health_state",
				Help: "1 for the current vine health state, 0 otherwise",
			},
			[]string{"state"},
		),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "tick_duration_seconds",
			Help:    "Duration of one polling tick",
			Buckets: prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.LinesTotal,
		m.SamplesTotal,
		m.ReadErrorsTotal,
		m.RowsTotal,
		m.StoreSamples,
		m.StoreEvicted,
		m.FieldValue,
		m.HealthState,
		m.TickDuration,
	)
	return m
}

// ObserveLine counts one parsed line.
func (m *Metrics) ObserveLine(res parser.Result) {
	cat := string(res.Category)
	if cat == "" {
		cat = "none"
	}
	m.LinesTotal.WithLabelValues(cat, res.Outcome.String()).Inc()
	if res.Outcome == parser.OutcomeSampleCommitted {
		m.SamplesTotal.Inc()
	}
}

// ObserveReadError counts one source read failure.
func (m *Metrics) ObserveReadError() {
	m.ReadErrorsTotal.Inc()
}

// ObserveStore publishes the store size and latest snapshot.
func (m *Metrics) ObserveStore(s *store.Store) {
	m.StoreSamples.Set(float64(s.Len()))
	m.StoreEvicted.Set(float64(s.Evicted()))

	snap := s.Snapshot()
	if snap.Empty {
		return
	}
	for field, v := range snap.Values {
		m.FieldValue.WithLabelValues(field).Set(v)
	}
	for _, h := range []store.Health{store.HealthHealthy, store.HealthStressed, store.HealthAlert} {
		v := 0.0
		if h == snap.Health {
			v = 1
		}
		m.HealthState.WithLabelValues(string(h)).Set(v)
	}
}

// ObserveIngest counts the rows of one CSV load.
func (m *Metrics) ObserveIngest(stats ingest.Stats) {
	m.RowsTotal.WithLabelValues("accepted").Add(float64(stats.Accepted))
	m.RowsTotal.WithLabelValues("short").Add(float64(stats.ShortRows))
	m.RowsTotal.WithLabelValues("invalid").Add(float64(stats.InvalidRows))
}

// ObserveTick records the duration of one polling tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.TickDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
