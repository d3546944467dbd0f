package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/core/storage"
	"github.com/storelens-lab/storelens/internal/etl"
)

// stubStore overrides only the calls a test expects; anything else panics
// through the embedded nil interface.
type stubStore struct {
	storage.Store

	latestCustomerMetrics func(int64) (*v1.CustomerMetrics, error)
	dailyMetricsRange     func(v1.SourceType, time.Time, time.Time) ([]*v1.DailyMetrics, error)
	segmentCounts         func() (map[v1.Segment]int, error)
	recentRuns            func(int) ([]*v1.ETLRunLog, error)
	customersWithOrders   func(v1.SourceType) ([]*storage.CustomerOrders, error)
}

func (s *stubStore) LatestCustomerMetrics(_ context.Context, customerID int64) (*v1.CustomerMetrics, error) {
	return s.latestCustomerMetrics(customerID)
}

func (s *stubStore) DailyMetricsRange(_ context.Context, source v1.SourceType, start, end time.Time) ([]*v1.DailyMetrics, error) {
	return s.dailyMetricsRange(source, start, end)
}

func (s *stubStore) SegmentCounts(context.Context) (map[v1.Segment]int, error) {
	return s.segmentCounts()
}

func (s *stubStore) RecentRuns(_ context.Context, limit int) ([]*v1.ETLRunLog, error) {
	return s.recentRuns(limit)
}

func (s *stubStore) CustomersWithOrders(_ context.Context, source v1.SourceType) ([]*storage.CustomerOrders, error) {
	return s.customersWithOrders(source)
}

type stubTrigger struct {
	lastSource v1.SourceType
	result     *etl.RunResult
}

func (s *stubTrigger) RunForSource(_ context.Context, source v1.SourceType) *etl.RunResult {
	s.lastSource = source
	return s.result
}

func newTestRouter(store storage.Store, trigger RunTrigger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := NewService(store, trigger)
	svc.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleCustomerMetrics(t *testing.T) {
	store := &stubStore{
		latestCustomerMetrics: func(id int64) (*v1.CustomerMetrics, error) {
			if id != 42 {
				return nil, storage.ErrNotFound
			}
			return &v1.CustomerMetrics{
				CustomerID:   42,
				TotalOrders:  3,
				TotalRevenue: decimal.NewFromFloat(499.50),
				Segment:      v1.SegmentChampions,
			}, nil
		},
	}
	r := newTestRouter(store, nil)

	t.Run("found", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/customers/42")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, float64(42), body["customer_id"])
		require.Equal(t, string(v1.SegmentChampions), body["customer_segment"])
	})

	t.Run("never scored", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/customers/7")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/customers/abc")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDailyMetrics(t *testing.T) {
	var gotSource v1.SourceType
	var gotStart, gotEnd time.Time
	store := &stubStore{
		dailyMetricsRange: func(source v1.SourceType, start, end time.Time) ([]*v1.DailyMetrics, error) {
			gotSource, gotStart, gotEnd = source, start, end
			return []*v1.DailyMetrics{{SourceType: v1.SourceShopify, TotalOrders: 2}}, nil
		},
	}
	r := newTestRouter(store, nil)

	t.Run("explicit range", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/daily?source=shopify&start=2024-01-01&end=2024-01-31")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, v1.SourceShopify, gotSource)
		require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), gotStart)
		require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), gotEnd)
	})

	t.Run("defaults to last thirty days", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/daily")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, v1.SourceType(""), gotSource)
		require.WithinDuration(t, time.Now().UTC(), gotEnd, time.Minute)
		require.WithinDuration(t, gotEnd.AddDate(0, 0, -30), gotStart, time.Minute)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := doRequest(t, r, http.MethodGet, "/v1/metrics/daily?source=magento")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleCohorts(t *testing.T) {
	jan := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	store := &stubStore{
		customersWithOrders: func(source v1.SourceType) ([]*storage.CustomerOrders, error) {
			customer := &v1.Customer{ID: 1, SourceType: v1.SourceShopify, FirstPurchaseDate: &jan}
			order := &v1.Order{CustomerID: &customer.ID, Total: decimal.NewFromFloat(250), ProcessedAt: jan}
			return []*storage.CustomerOrders{{Customer: customer, Orders: []*v1.Order{order}}}, nil
		},
	}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/v1/cohorts")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Cohorts []*v1.CohortMetrics `json:"cohorts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Cohorts, 1)
	require.Equal(t, "2023-01", body.Cohorts[0].Cohort)
	require.Equal(t, 1, body.Cohorts[0].CustomerCount)
}

func TestHandleRecentRuns_DefaultLimit(t *testing.T) {
	var gotLimit int
	store := &stubStore{
		recentRuns: func(limit int) ([]*v1.ETLRunLog, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, defaultRunsLimit, gotLimit)
}

func TestHandleDashboard(t *testing.T) {
	store := &stubStore{
		segmentCounts: func() (map[v1.Segment]int, error) {
			return map[v1.Segment]int{v1.SegmentChampions: 3}, nil
		},
		dailyMetricsRange: func(v1.SourceType, time.Time, time.Time) ([]*v1.DailyMetrics, error) {
			return []*v1.DailyMetrics{{TotalOrders: 5}}, nil
		},
		recentRuns: func(limit int) ([]*v1.ETLRunLog, error) {
			require.Equal(t, dashboardRunsLimit, limit)
			return []*v1.ETLRunLog{{ID: "run-1", Status: v1.RunStatusSuccess}}, nil
		},
	}
	r := newTestRouter(store, nil)

	w := doRequest(t, r, http.MethodGet, "/v1/dashboard")
	require.Equal(t, http.StatusOK, w.Code)

	var body Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 3, body.Segments[v1.SegmentChampions])
	require.Len(t, body.Daily, 1)
	require.Len(t, body.RecentRuns, 1)
}

func TestHandleTriggerRun(t *testing.T) {
	trigger := &stubTrigger{
		result: &etl.RunResult{Run: &v1.ETLRunLog{ID: "run-9", Status: v1.RunStatusSuccess}},
	}
	r := newTestRouter(&stubStore{}, trigger)

	t.Run("valid source", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/v1/runs/shopify")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, v1.SourceShopify, trigger.lastSource)

		var body struct {
			Run *v1.ETLRunLog `json:"run"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, "run-9", body.Run.ID)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := doRequest(t, r, http.MethodPost, "/v1/runs/magento")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no pipeline configured", func(t *testing.T) {
		bare := newTestRouter(&stubStore{}, nil)
		w := doRequest(t, bare, http.MethodPost, "/v1/runs/shopify")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
