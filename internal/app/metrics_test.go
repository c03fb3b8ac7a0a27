package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsPushTypesAreBounded(t *testing.T) {
	m := NewMetrics()

	m.observePush("activity_update")
	m.observePush("analysis_update")
	m.observePush("heartbeat")
	m.observePush("x-1")
	m.observePush("")

	body := scrape(t, m)
	require.Contains(t, body, `garminai_push_messages_total{type="activity_update"} 1`)
	require.Contains(t, body, `garminai_push_messages_total{type="analysis_update"} 1`)
	require.Contains(t, body, `garminai_push_messages_total{type="other"} 3`)
	require.NotContains(t, body, `type="heartbeat"`)
	require.NotContains(t, body, `type="x-1"`)
}

func TestMetricsNilIsNoop(t *testing.T) {
	var m *Metrics

	m.observeRequest("health", nil)
	m.observeStale(ActionAnalyze)
	m.observePush("activity_update")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
