package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/patchfinder/metrics"
)

func TestMetrics(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.PatchesFound.WithLabelValues("crawl").Inc()
	a.PatchesFound.WithLabelValues("crawl").Inc()
	a.ResponsesDropped.WithLabelValues(metrics.DropContentType).Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(a.PatchesFound.WithLabelValues("crawl")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PatchesFound.WithLabelValues("crawl")))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `patchfinder_responses_dropped_total{reason="content_type"} 1`)
}
