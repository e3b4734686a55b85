package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = (*NopMetrics)(nil)
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics("bridge")

	m.IncTransition("post")
	m.IncTransition("post")
	m.IncRejection("claim", "query in wrong status")
	m.AddPayout("result", 110)
	m.AddPayout("inclusion", 5)
	m.IncRollback("report_result")
	m.ObserveOpLatency("post", 2*time.Millisecond)
	m.SetQueryCount(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("post")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rejections.WithLabelValues("claim", "query in wrong status")))
	assert.Equal(t, float64(110), testutil.ToFloat64(m.payouts.WithLabelValues("result")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rollbacks.WithLabelValues("report_result")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.queryCount))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bridge_transitions_total")
	assert.Contains(t, string(body), "bridge_op_latency_seconds_bucket")
}

func TestNopMetrics(t *testing.T) {
	m := NewNopMetrics()
	m.IncTransition("post")
	m.AddPayout("result", 1)
	m.ObserveOpLatency("post", time.Second)
}
