// Package reporting exposes the computed analytics over HTTP: per-customer
// metrics, daily aggregates, segment distribution, cohorts, and run logs.
package reporting

import (
	"context"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/core/analytics"
	"github.com/storelens-lab/storelens/internal/core/storage"
	"github.com/storelens-lab/storelens/internal/etl"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRunsLimit      = 20
	defaultDailyRangeDays = 30
	dashboardRangeDays    = 7
	dashboardRunsLimit    = 10
)

// RunTrigger starts a pipeline run for one source. Satisfied by the
// orchestrator.
type RunTrigger interface {
	RunForSource(ctx context.Context, source v1.SourceType) *etl.RunResult
}

// Service answers reporting queries from the store and can trigger ad-hoc
// pipeline runs.
type Service struct {
	store   storage.Store
	trigger RunTrigger
	now     func() time.Time
}

func NewService(store storage.Store, trigger RunTrigger) *Service {
	return &Service{
		store:   store,
		trigger: trigger,
		now:     time.Now,
	}
}

// Dashboard is the aggregate overview served at /v1/dashboard.
type Dashboard struct {
	Segments   map[v1.Segment]int `json:"segments"`
	Daily      []*v1.DailyMetrics `json:"daily"`
	RecentRuns []*v1.ETLRunLog    `json:"recent_runs"`
}

// BuildDashboard assembles the dashboard sections concurrently; any section
// failure fails the whole query.
func (s *Service) BuildDashboard(ctx context.Context) (*Dashboard, error) {
	dashboard := &Dashboard{}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -dashboardRangeDays)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		segments, err := s.store.SegmentCounts(gctx)
		if err != nil {
			return err
		}
		dashboard.Segments = segments
		return nil
	})
	g.Go(func() error {
		daily, err := s.store.DailyMetricsRange(gctx, "", start, end)
		if err != nil {
			return err
		}
		dashboard.Daily = daily
		return nil
	})
	g.Go(func() error {
		runs, err := s.store.RecentRuns(gctx, dashboardRunsLimit)
		if err != nil {
			return err
		}
		dashboard.RecentRuns = runs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// Cohorts recomputes cohort metrics from the loaded customers and orders.
// An empty source covers all sources.
func (s *Service) Cohorts(ctx context.Context, source v1.SourceType) ([]*v1.CohortMetrics, error) {
	pairs, err := s.store.CustomersWithOrders(ctx, source)
	if err != nil {
		return nil, err
	}

	customers := make([]*v1.Customer, 0, len(pairs))
	var orders []*v1.Order
	for _, pair := range pairs {
		customers = append(customers, pair.Customer)
		orders = append(orders, pair.Orders...)
	}
	return analytics.AnalyzeCohorts(customers, orders), nil
}
