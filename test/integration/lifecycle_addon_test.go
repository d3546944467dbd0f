//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

func TestReportingAPI_E2ELifecycle(t *testing.T) {
	h := startHarness(t)
	defer h.close(t)

	require.NoError(t, resetDatabase(t, h.db))

	t.Run("health endpoint", func(t *testing.T) {
		resp, err := h.client.Get(h.baseURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	})

	t.Run("runs endpoint is empty before any pipeline run", func(t *testing.T) {
		var payload struct {
			Runs []*v1.ETLRunLog `json:"runs"`
		}
		getJSON(t, h, "/v1/runs", &payload)
		require.Empty(t, payload.Runs)
	})

	t.Run("trigger pipeline run", func(t *testing.T) {
		status, body := postEmpty(t, h.client, h.baseURL+"/v1/runs/woocommerce")
		require.Equal(t, http.StatusOK, status, string(body))

		var payload struct {
			Run *v1.ETLRunLog `json:"run"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, v1.RunStatusSuccess, payload.Run.Status)
		require.NotEmpty(t, payload.Run.ID)
	})

	t.Run("unknown source is rejected", func(t *testing.T) {
		status, body := postEmpty(t, h.client, h.baseURL+"/v1/runs/magento")
		require.Equal(t, http.StatusBadRequest, status, string(body))
	})

	t.Run("daily metrics cover the run date", func(t *testing.T) {
		var payload struct {
			Daily []*v1.DailyMetrics `json:"daily"`
		}
		getJSON(t, h, "/v1/metrics/daily?source=woocommerce&start=2024-01-01&end=2026-12-31", &payload)
		require.NotEmpty(t, payload.Daily)
		for _, day := range payload.Daily {
			require.Equal(t, v1.SourceWooCommerce, day.SourceType)
		}
	})

	t.Run("segments cover every scored customer", func(t *testing.T) {
		var payload struct {
			Segments map[v1.Segment]int `json:"segments"`
		}
		getJSON(t, h, "/v1/segments", &payload)

		total := 0
		for _, count := range payload.Segments {
			total += count
		}
		// Both customers are scored; the one without orders lands in inactive.
		require.Equal(t, 2, total)
		require.GreaterOrEqual(t, payload.Segments[v1.SegmentInactive], 1)
	})

	t.Run("cohorts group by first purchase month", func(t *testing.T) {
		var payload struct {
			Cohorts []*v1.CohortMetrics `json:"cohorts"`
		}
		getJSON(t, h, "/v1/cohorts?source=woocommerce", &payload)
		require.Len(t, payload.Cohorts, 1)
		require.Equal(t, "2024-02", payload.Cohorts[0].Cohort)
		require.Equal(t, 1, payload.Cohorts[0].CustomerCount)
	})

	t.Run("dashboard aggregates all sections", func(t *testing.T) {
		resp, err := h.client.Get(h.baseURL + "/v1/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var dashboard struct {
			Segments   map[v1.Segment]int `json:"segments"`
			RecentRuns []*v1.ETLRunLog    `json:"recent_runs"`
		}
		require.NoError(t, json.Unmarshal(body, &dashboard))
		require.NotEmpty(t, dashboard.Segments)
		require.NotEmpty(t, dashboard.RecentRuns)
	})
}

func getJSON(t *testing.T, h *integrationHarness, path string, out interface{}) {
	t.Helper()

	resp, err := h.client.Get(h.baseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, fmt.Sprintf("%s: %s", path, body))
	require.NoError(t, json.Unmarshal(body, out))
}
