package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// CustomerOrders pairs a customer with all of its loaded orders, the input
// shape the analytics engine computes per-customer metrics from.
type CustomerOrders struct {
	Customer *v1.Customer
	Orders   []*v1.Order
}

// Store is the persistence contract consumed by the orchestrator and the
// reporting layer. Every call is atomic on its own; the pipeline never
// requires a multi-statement transaction across calls.
type Store interface {
	// UpsertCustomer inserts or updates a customer keyed by
	// (source_type, source_id) and returns its store-assigned id.
	UpsertCustomer(ctx context.Context, customer *v1.Customer) (int64, error)

	// UpsertProduct inserts or updates a product keyed by
	// (source_type, source_id) and returns its store-assigned id.
	UpsertProduct(ctx context.Context, product *v1.Product) (int64, error)

	// UpsertOrder inserts or updates an order keyed by (source_type, source_id).
	// customerID, when non-nil, links the order to a loaded customer.
	UpsertOrder(ctx context.Context, order *v1.Order, customerID *int64) (int64, error)

	// InsertOrderItems inserts the given line items for an order and returns
	// the subset that was persisted. A failure inserting one item does not
	// abort the rest.
	InsertOrderItems(ctx context.Context, items []*v1.OrderItem, orderID int64) ([]*v1.OrderItem, error)

	// FindCustomerID resolves a customer id by (email, source_type).
	// Returns nil without error when no customer matches.
	FindCustomerID(ctx context.Context, email string, source v1.SourceType) (*int64, error)

	// FindProductID resolves a product id by (source_product_id, source_type).
	// Returns nil without error when no product matches.
	FindProductID(ctx context.Context, sourceProductID string, source v1.SourceType) (*int64, error)

	// RefreshCustomerPurchaseDates recomputes first/last purchase dates for
	// every customer of the source from its loaded orders.
	RefreshCustomerPurchaseDates(ctx context.Context, source v1.SourceType) error

	// LastSuccessfulRun returns the most recent run with status success for
	// (pipelineName, source), or nil when the pipeline has never succeeded.
	LastSuccessfulRun(ctx context.Context, pipelineName string, source v1.SourceType) (*v1.ETLRunLog, error)

	// LogRun persists a completed run log row. Rows are immutable once written.
	LogRun(ctx context.Context, run *v1.ETLRunLog) error

	// RecentRuns returns the newest run logs across all sources, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*v1.ETLRunLog, error)

	// CustomersWithOrders returns every customer of the source together with
	// all of its orders. An empty source means all sources.
	CustomersWithOrders(ctx context.Context, source v1.SourceType) ([]*CustomerOrders, error)

	// OrdersForDate returns the orders (line items populated) of the source
	// whose processed_at falls on the given calendar date.
	OrdersForDate(ctx context.Context, source v1.SourceType, date time.Time) ([]*v1.Order, error)

	// ProductsBySource returns the loaded product catalog for the source.
	ProductsBySource(ctx context.Context, source v1.SourceType) ([]*v1.Product, error)

	// UpsertCustomerMetrics overwrites the metrics row for
	// (customer_id, calculation_date).
	UpsertCustomerMetrics(ctx context.Context, metrics *v1.CustomerMetrics) error

	// UpsertDailyMetrics overwrites the metrics row for (metric_date, source_type).
	UpsertDailyMetrics(ctx context.Context, metrics *v1.DailyMetrics) error

	// LatestCustomerMetrics returns the newest metrics row for a customer.
	// Returns ErrNotFound when the customer has never been scored.
	LatestCustomerMetrics(ctx context.Context, customerID int64) (*v1.CustomerMetrics, error)

	// DailyMetricsRange returns daily metric rows for the source between
	// start and end inclusive, oldest first. An empty source means all sources.
	DailyMetricsRange(ctx context.Context, source v1.SourceType, start, end time.Time) ([]*v1.DailyMetrics, error)

	// SegmentCounts returns the number of customers per segment, using each
	// customer's most recent metrics row.
	SegmentCounts(ctx context.Context) (map[v1.Segment]int, error)
}
