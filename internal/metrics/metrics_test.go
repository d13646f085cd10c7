package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/claimgraph/internal/graph"
)

func TestRebuildMetrics(t *testing.T) {
	m := New()

	m.RebuildStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuildRunning))

	m.RebuildItem(true)
	m.RebuildItem(true)
	m.RebuildItem(false)
	m.RebuildFinished(false)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.rebuildRunning))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rebuildItems.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuildItems.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rebuildRuns.WithLabelValues("success")))
}

func TestQueryAndPartnerMetrics(t *testing.T) {
	m := New()

	m.QueryObserved(graph.LanguageSQL, "ok", 20*time.Millisecond)
	m.QueryObserved("", "disabled", 0)
	m.PartnerFailed("http://b")
	m.PartnerFailed("http://b")

	assert.Equal(t, 2, testutil.CollectAndCount(m.queryDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.partnerFailures.WithLabelValues("http://b")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.PartnerFailed("http://b")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `claimgraph_federation_partner_failures_total{partner="http://b"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
