package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrometheusMetrics_Counters checks lazily created vectors and label
// normalization.
func TestPrometheusMetrics_Counters(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RecordCounter("reviews_created_total", 1, map[string]string{"source_type": "direct_submission"})
	pm.RecordCounter("reviews_created_total", 2, map[string]string{"source_type": "gemini_analysis"})
	pm.RecordCounter("reviews_created_total", 1, map[string]string{"source_type": "gemini_analysis", "extra": "dropped"})
	pm.RecordCounter("reviews_created_total", -5, map[string]string{"source_type": "gemini_analysis"})
	pm.RecordCounter("faculty_created_total", 1, nil)

	c := pm.counters["reviews_created_total"]
	require.NotNil(t, c)
	assert.Equal(t, []string{"source_type"}, c.labels)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.vec.WithLabelValues("direct_submission")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.vec.WithLabelValues("gemini_analysis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.counters["faculty_created_total"].vec.WithLabelValues()))
}

// TestPrometheusMetrics_GaugesAndHistograms covers gauges, latency and
// rating histograms.
func TestPrometheusMetrics_GaugesAndHistograms(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RecordGauge("faculty_records", 4, nil)
	pm.RecordGauge("faculty_records", 7, nil)
	assert.Equal(t, 7.0, testutil.ToFloat64(pm.gauges["faculty_records"].vec.WithLabelValues()))

	pm.RecordLatency("rating mutation", 30*time.Millisecond, map[string]string{"op": "create_review"})
	pm.RecordHistogram("review_overall_rating", 4.25, map[string]string{"source_type": "direct_submission"})

	assert.Equal(t, 1, testutil.CollectAndCount(pm.histograms["rating_mutation_duration_seconds"].vec))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.histograms["review_overall_rating"].vec))

	families, err := pm.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gavel_faculty_records"])
	assert.True(t, names["gavel_rating_mutation_duration_seconds"])
	assert.True(t, names["go_goroutines"], "runtime collectors are registered")
}

// TestPrometheusMetrics_Handler serves the exposition format.
func TestPrometheusMetrics_Handler(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.RecordCounter("analyses_total", 1, map[string]string{"outcome": "accepted"})

	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gavel_analyses_total{outcome="accepted"} 1`)
}

// TestPrometheusMetrics_IndependentRegistries lets several collectors exist
// in one process.
func TestPrometheusMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewPrometheusMetrics(), NewPrometheusMetrics()
	assert.NotPanics(t, func() {
		a.RecordCounter("x_total", 1, nil)
		b.RecordCounter("x_total", 1, nil)
	})
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "rating_mutation", sanitize("rating mutation"))
	assert.Equal(t, "llm_latency_seconds", sanitize("llm.latency-seconds"))
}
