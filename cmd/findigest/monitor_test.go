package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/findigest/internal/metrics"
)

func TestMonitoringEndpoints(t *testing.T) {
	saved := metrics.Global
	metrics.Global = metrics.New()
	t.Cleanup(func() { metrics.Global = saved })

	metrics.Global.RecordFetch("Mint", 3, "", 10*time.Millisecond)
	metrics.Global.SetLastRun("run-42")

	server := httptest.NewServer(newMonitoringMux())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-42", body["run_id"])

	stats, err := http.Get(server.URL + "/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	var statsBody struct {
		Sources []metrics.SourceStats `json:"sources"`
	}
	require.NoError(t, json.NewDecoder(stats.Body).Decode(&statsBody))
	require.Len(t, statsBody.Sources, 1)
	assert.Equal(t, "Mint", statsBody.Sources[0].Source)

	prom, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer prom.Body.Close()
	assert.Equal(t, http.StatusOK, prom.StatusCode)
}

func TestHealthUnhealthy(t *testing.T) {
	saved := metrics.Global
	metrics.Global = metrics.New()
	t.Cleanup(func() { metrics.Global = saved })

	metrics.Global.SetError("delivery skipped")

	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "delivery skipped")
}
