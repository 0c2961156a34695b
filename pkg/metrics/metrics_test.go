package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vignelab/vignelab/pkg/ingest"
	"github.com/vignelab/vignelab/pkg/parser"
	"github.com/vignelab/vignelab/pkg/store"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Lines(t *testing.T) {
	m := New()
	m.ObserveLine(parser.Result{Category: parser.CategoryHealth, Outcome: parser.OutcomeFieldsUpdated})
	m.ObserveLine(parser.Result{Category: parser.CategoryWeather, Outcome: parser.OutcomeSampleCommitted})
	m.ObserveLine(parser.Result{Outcome: parser.OutcomeNoop})
	m.ObserveReadError()

	body := scrape(t, m)
	require.Contains(t, body, `vignelab_lines_total{category="health",outcome="fields-updated"} 1`)
	require.Contains(t, body, `vignelab_lines_total{category="weather",outcome="sample-committed"} 1`)
	require.Contains(t, body, `vignelab_lines_total{category="none",outcome="no-op"} 1`)
	require.Contains(t, body, "vignelab_samples_committed_total 1")
	require.Contains(t, body, "vignelab_read_errors_total 1")
}

func TestMetrics_Store(t *testing.T) {
	m := New()
	s := store.New(store.WithMaxPoints(1))
	s.Append(parser.Sample{Values: map[string]float64{parser.FieldNDVI: 0.9}})
	s.Append(parser.Sample{Values: map[string]float64{parser.FieldNDVI: 0.1}})
	m.ObserveStore(s)
	m.ObserveTick(10 * time.Millisecond)

	body := scrape(t, m)
	require.Contains(t, body, "vignelab_store_samples 1")
	require.Contains(t, body, "vignelab_store_evicted 1")
	require.Contains(t, body, `vignelab_field_value{field="NDVI"} 0.1`)
	require.Contains(t, body, `vignelab_health_state{state="alert"} 1`)
	require.Contains(t, body, `vignelab_health_state{state="healthy"} 0`)
	require.Contains(t, body, "vignelab_tick_duration_seconds_count 1")
}

func TestMetrics_EmptyStore(t *testing.T) {
	m := New()
	m.ObserveStore(store.New())

	body := scrape(t, m)
	require.Contains(t, body, "vignelab_store_samples 0")
	require.NotContains(t, body, "vignelab_health_state{")
}

func TestMetrics_Ingest(t *testing.T) {
	m := New()
	m.ObserveIngest(ingest.Stats{Accepted: 5, ShortRows: 2, InvalidRows: 1})

	body := scrape(t, m)
	require.Contains(t, body, `vignelab_csv_rows_total{result="accepted"} 5`)
	require.Contains(t, body, `vignelab_csv_rows_total{result="short"} 2`)
	require.Contains(t, body, `vignelab_csv_rows_total{result="invalid"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}
