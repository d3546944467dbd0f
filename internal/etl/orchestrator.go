// Package etl drives one incremental pipeline run per source: connect,
// watermark, extract, transform, load, compute metrics. Failure in one
// source's run never aborts another source.
package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/storelens-lab/storelens/internal/connector"
	"github.com/storelens-lab/storelens/internal/core/analytics"
	"github.com/storelens-lab/storelens/internal/core/storage"
	"github.com/storelens-lab/storelens/internal/transform"
)

const defaultMetricWorkers = 4

// BatchFailure records one entity that failed to persist during Loading.
// Per-entity failures are recovered locally: the batch continues.
type BatchFailure struct {
	Entity   string `json:"entity"`
	SourceID string `json:"source_id"`
	Error    string `json:"error"`
}

// BatchResult summarizes one entity batch of the Loading stage.
type BatchResult struct {
	Inserted int            `json:"inserted"`
	Failed   []BatchFailure `json:"failed,omitempty"`
}

// LoadSummary is the per-entity outcome of the Loading stage. It becomes
// the run log's metadata on success.
type LoadSummary struct {
	Customers  BatchResult `json:"customers"`
	Products   BatchResult `json:"products"`
	Orders     BatchResult `json:"orders"`
	OrderItems BatchResult `json:"order_items"`
}

func (s *LoadSummary) totalInserted() int {
	return s.Customers.Inserted + s.Products.Inserted + s.Orders.Inserted + s.OrderItems.Inserted
}

func (s *LoadSummary) metadata() map[string]any {
	return map[string]any{
		"customers":   s.Customers,
		"products":    s.Products,
		"orders":      s.Orders,
		"order_items": s.OrderItems,
	}
}

// RunResult is the outcome of one source's run.
type RunResult struct {
	Run  *v1.ETLRunLog
	Load *LoadSummary
}

// Orchestrator executes pipeline runs across the configured sources.
type Orchestrator struct {
	pipelineName  string
	store         storage.Store
	normalizer    *transform.Normalizer
	connectors    map[v1.SourceType]connector.Connector
	order         []v1.SourceType
	metricWorkers int
	now           func() time.Time
}

// New creates an orchestrator over the given connectors. Sources run in the
// order the connectors are passed.
func New(pipelineName string, store storage.Store, normalizer *transform.Normalizer, connectors ...connector.Connector) *Orchestrator {
	o := &Orchestrator{
		pipelineName:  pipelineName,
		store:         store,
		normalizer:    normalizer,
		connectors:    make(map[v1.SourceType]connector.Connector, len(connectors)),
		metricWorkers: defaultMetricWorkers,
		now:           time.Now,
	}
	for _, conn := range connectors {
		source := conn.Source()
		if _, exists := o.connectors[source]; exists {
			continue
		}
		o.connectors[source] = conn
		o.order = append(o.order, source)
	}
	return o
}

// SetMetricWorkers caps the concurrency of the ComputingMetrics stage.
// Values below 1 keep the default.
func (o *Orchestrator) SetMetricWorkers(n int) {
	if n >= 1 {
		o.metricWorkers = n
	}
}

// Sources returns the configured sources in run order.
func (o *Orchestrator) Sources() []v1.SourceType {
	out := make([]v1.SourceType, len(o.order))
	copy(out, o.order)
	return out
}

// RunAll executes one run per configured source, sequentially. Every source
// gets its turn regardless of earlier failures; the returned map holds one
// result per source.
func (o *Orchestrator) RunAll(ctx context.Context) map[v1.SourceType]*RunResult {
	results := make(map[v1.SourceType]*RunResult, len(o.order))
	for _, source := range o.order {
		results[source] = o.RunForSource(ctx, source)
	}
	return results
}

// RunForSource executes the full pipeline for one source and persists its
// run log. The returned result always carries the run log, failed or not.
func (o *Orchestrator) RunForSource(ctx context.Context, source v1.SourceType) *RunResult {
	startedAt := o.now().UTC()
	run := &v1.ETLRunLog{
		ID:           uuid.NewString(),
		PipelineName: o.pipelineName,
		SourceType:   source,
		Status:       v1.RunStatusRunning,
		StartedAt:    startedAt,
	}
	result := &RunResult{Run: run}

	slog.Info("[Orchestrator] Starting run", "run_id", run.ID, "source", source)

	err := o.execute(ctx, source, run, result)

	completedAt := o.now().UTC()
	run.CompletedAt = completedAt
	run.DurationSeconds = completedAt.Sub(startedAt).Seconds()

	if err != nil {
		run.Status = v1.RunStatusFailed
		run.ErrorMessage = err.Error()
		slog.Error("[Orchestrator] Run failed",
			"run_id", run.ID,
			"source", source,
			"stage", failedStage(err),
			"error", err,
		)
	} else {
		run.Status = v1.RunStatusSuccess
		slog.Info("[Orchestrator] Run succeeded",
			"run_id", run.ID,
			"source", source,
			"extracted", run.RecordsExtracted,
			"transformed", run.RecordsTransformed,
			"loaded", run.RecordsLoaded,
			"duration_seconds", run.DurationSeconds,
		)
	}

	// The run outcome stands even when the log row cannot be written; the
	// run is then simply absent from the log.
	if logErr := o.store.LogRun(ctx, run); logErr != nil {
		slog.Error("[Orchestrator] Failed to persist run log", "run_id", run.ID, "source", source, "error", logErr)
	}

	return result
}

func failedStage(err error) Stage {
	if perr, ok := err.(*PipelineError); ok {
		return perr.Stage
	}
	return StageFailed
}

func (o *Orchestrator) execute(ctx context.Context, source v1.SourceType, run *v1.ETLRunLog, result *RunResult) error {
	conn, ok := o.connectors[source]
	if !ok {
		return &PipelineError{
			Stage: StageConnecting,
			Kind:  KindConnection,
			Err:   fmt.Errorf("cannot connect: no connector configured for source %q", source),
		}
	}

	// Connecting.
	if err := conn.TestConnection(ctx); err != nil {
		return &PipelineError{
			Stage: StageConnecting,
			Kind:  KindConnection,
			Err:   fmt.Errorf("failed to connect to %s: %w", source, err),
		}
	}

	// DeterminingWatermark: incremental from the last successful run's
	// completion, full extraction when the pipeline has never succeeded.
	var since *time.Time
	lastRun, err := o.store.LastSuccessfulRun(ctx, o.pipelineName, source)
	if err != nil {
		return &PipelineError{
			Stage: StageDeterminingWatermark,
			Kind:  KindExtraction,
			Err:   fmt.Errorf("failed to determine watermark: %w", err),
		}
	}
	if lastRun != nil {
		watermark := lastRun.CompletedAt
		since = &watermark
		slog.Info("[Orchestrator] Incremental extraction", "source", source, "since", watermark)
	} else {
		slog.Info("[Orchestrator] Full extraction, no prior successful run", "source", source)
	}

	// Extracting: customers, then products, then orders. Sequential to
	// bound load on rate-limited source APIs.
	rawCustomers, err := conn.FetchCustomers(ctx, since)
	if err != nil {
		return &PipelineError{Stage: StageExtracting, Kind: KindExtraction, Err: fmt.Errorf("failed to fetch customers: %w", err)}
	}
	run.RecordsExtracted += len(rawCustomers)

	rawProducts, err := conn.FetchProducts(ctx, since)
	if err != nil {
		return &PipelineError{Stage: StageExtracting, Kind: KindExtraction, Err: fmt.Errorf("failed to fetch products: %w", err)}
	}
	run.RecordsExtracted += len(rawProducts)

	rawOrders, err := conn.FetchOrders(ctx, since)
	if err != nil {
		return &PipelineError{Stage: StageExtracting, Kind: KindExtraction, Err: fmt.Errorf("failed to fetch orders: %w", err)}
	}
	run.RecordsExtracted += len(rawOrders)

	// Transforming: fail-fast. One malformed record discards the whole
	// run's transformed data rather than loading an inconsistent subset.
	customers := make([]*v1.Customer, 0, len(rawCustomers))
	for _, raw := range rawCustomers {
		customer, err := o.normalizer.Customer(source, raw)
		if err != nil {
			return &PipelineError{Stage: StageTransforming, Kind: KindNormalization, Err: err}
		}
		customers = append(customers, customer)
	}
	products := make([]*v1.Product, 0, len(rawProducts))
	for _, raw := range rawProducts {
		product, err := o.normalizer.Product(source, raw)
		if err != nil {
			return &PipelineError{Stage: StageTransforming, Kind: KindNormalization, Err: err}
		}
		products = append(products, product)
	}
	orders := make([]*v1.Order, 0, len(rawOrders))
	for _, raw := range rawOrders {
		order, err := o.normalizer.Order(source, raw)
		if err != nil {
			return &PipelineError{Stage: StageTransforming, Kind: KindNormalization, Err: err}
		}
		orders = append(orders, order)
	}
	run.RecordsTransformed = len(customers) + len(products) + len(orders)

	// Loading.
	summary, err := o.load(ctx, source, customers, products, orders)
	result.Load = summary
	run.RecordsLoaded = summary.totalInserted()
	run.Metadata = summary.metadata()
	if err != nil {
		return &PipelineError{Stage: StageLoading, Kind: KindLoad, Err: err}
	}

	// ComputingMetrics.
	if err := o.computeMetrics(ctx, source, run.StartedAt); err != nil {
		return &PipelineError{Stage: StageComputingMetrics, Kind: KindMetrics, Err: err}
	}

	return nil
}

// load upserts the transformed entities. Each entity is attempted
// independently: a failure is recorded and the batch continues. Only
// infrastructure-level failures (the purchase-date refresh) are fatal.
func (o *Orchestrator) load(ctx context.Context, source v1.SourceType, customers []*v1.Customer, products []*v1.Product, orders []*v1.Order) (*LoadSummary, error) {
	summary := &LoadSummary{}

	for _, customer := range customers {
		if _, err := o.store.UpsertCustomer(ctx, customer); err != nil {
			summary.Customers.Failed = append(summary.Customers.Failed, BatchFailure{
				Entity:   "customer",
				SourceID: customer.SourceID,
				Error:    err.Error(),
			})
			slog.Warn("[Orchestrator] Failed to upsert customer", "source", source, "source_id", customer.SourceID, "error", err)
			continue
		}
		summary.Customers.Inserted++
	}

	for _, product := range products {
		if _, err := o.store.UpsertProduct(ctx, product); err != nil {
			summary.Products.Failed = append(summary.Products.Failed, BatchFailure{
				Entity:   "product",
				SourceID: product.SourceID,
				Error:    err.Error(),
			})
			slog.Warn("[Orchestrator] Failed to upsert product", "source", source, "source_id", product.SourceID, "error", err)
			continue
		}
		summary.Products.Inserted++
	}

	for _, order := range orders {
		orderID, err := o.loadOrder(ctx, source, order)
		if err != nil {
			summary.Orders.Failed = append(summary.Orders.Failed, BatchFailure{
				Entity:   "order",
				SourceID: order.SourceID,
				Error:    err.Error(),
			})
			slog.Warn("[Orchestrator] Failed to upsert order", "source", source, "source_id", order.SourceID, "error", err)
			continue
		}
		summary.Orders.Inserted++

		if len(order.LineItems) == 0 {
			continue
		}
		o.resolveProductIDs(ctx, source, order.LineItems)
		inserted, err := o.store.InsertOrderItems(ctx, order.LineItems, orderID)
		if err != nil {
			summary.OrderItems.Failed = append(summary.OrderItems.Failed, BatchFailure{
				Entity:   "order_item",
				SourceID: order.SourceID,
				Error:    err.Error(),
			})
			continue
		}
		summary.OrderItems.Inserted += len(inserted)
		for _, failure := range itemFailures(order.LineItems, inserted) {
			summary.OrderItems.Failed = append(summary.OrderItems.Failed, failure)
		}
	}

	if err := o.store.RefreshCustomerPurchaseDates(ctx, source); err != nil {
		return summary, fmt.Errorf("failed to refresh customer purchase dates: %w", err)
	}

	return summary, nil
}

func (o *Orchestrator) loadOrder(ctx context.Context, source v1.SourceType, order *v1.Order) (int64, error) {
	var customerID *int64
	if order.CustomerEmail != "" {
		id, err := o.store.FindCustomerID(ctx, order.CustomerEmail, source)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve customer for order: %w", err)
		}
		customerID = id
	}
	return o.store.UpsertOrder(ctx, order, customerID)
}

// resolveProductIDs links line items to loaded products. An unresolved
// reference is not an error: the item persists with a nil product id.
func (o *Orchestrator) resolveProductIDs(ctx context.Context, source v1.SourceType, items []*v1.OrderItem) {
	for _, item := range items {
		if item.SourceProductID == "" {
			continue
		}
		id, err := o.store.FindProductID(ctx, item.SourceProductID, source)
		if err != nil {
			slog.Warn("[Orchestrator] Product lookup failed", "source", source, "source_product_id", item.SourceProductID, "error", err)
			continue
		}
		item.ProductID = id
	}
}

func itemFailures(attempted, inserted []*v1.OrderItem) []BatchFailure {
	if len(inserted) == len(attempted) {
		return nil
	}
	persisted := make(map[string]bool, len(inserted))
	for _, item := range inserted {
		persisted[item.SourceID] = true
	}
	var failures []BatchFailure
	for _, item := range attempted {
		if !persisted[item.SourceID] {
			failures = append(failures, BatchFailure{
				Entity:   "order_item",
				SourceID: item.SourceID,
				Error:    "failed to persist order item",
			})
		}
	}
	return failures
}

// computeMetrics re-reads the loaded entities and upserts per-customer
// metrics plus the run date's daily aggregate. Per-customer computation is
// pure and runs concurrently; every upsert failure is fatal to the stage.
func (o *Orchestrator) computeMetrics(ctx context.Context, source v1.SourceType, calculationDate time.Time) error {
	pairs, err := o.store.CustomersWithOrders(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to read customers with orders: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.metricWorkers)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			metrics := analytics.CustomerMetricsFor(pair.Customer, pair.Orders, calculationDate)
			if err := o.store.UpsertCustomerMetrics(gctx, metrics); err != nil {
				return fmt.Errorf("failed to upsert metrics for customer %d: %w", pair.Customer.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	dayOrders, err := o.store.OrdersForDate(ctx, source, calculationDate)
	if err != nil {
		return fmt.Errorf("failed to read orders for date: %w", err)
	}
	catalog, err := o.store.ProductsBySource(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to read product catalog: %w", err)
	}

	daily := analytics.DailyMetricsFor(dayOrders, catalog, source, calculationDate)
	if err := o.store.UpsertDailyMetrics(ctx, daily); err != nil {
		return fmt.Errorf("failed to upsert daily metrics: %w", err)
	}
	return nil
}
