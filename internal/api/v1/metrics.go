package v1

import (
	"time"

	"github.com/shopspring/decimal"
)

// Segment is the behavioral bucket a customer falls into based on RFM scores.
type Segment string

const (
	SegmentChampions          Segment = "Champions"
	SegmentLoyalCustomers     Segment = "Loyal Customers"
	SegmentPotentialLoyalists Segment = "Potential Loyalists"
	SegmentNewCustomers       Segment = "New Customers"
	SegmentAtRisk             Segment = "At Risk"
	SegmentCannotLose         Segment = "Cannot Lose"
	SegmentHibernating        Segment = "Hibernating"
	SegmentPriceSensitive     Segment = "Price Sensitive"
	SegmentRegular            Segment = "Regular"

	// SegmentInactive is the sentinel segment for customers with no orders.
	SegmentInactive Segment = "Inactive"
)

// CustomerMetrics is one computed analytics row per (CustomerID, CalculationDate).
// Recomputed idempotently each run; a later run overwrites the row for the same key.
type CustomerMetrics struct {
	CustomerID      int64     `json:"customer_id"`
	CalculationDate time.Time `json:"calculation_date"`

	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalOrders       int             `json:"total_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`

	// PurchaseFrequency is orders per month-equivalent of the customer's lifespan.
	PurchaseFrequency    float64 `json:"purchase_frequency"`
	CustomerLifespanDays int     `json:"customer_lifespan_days"`

	CustomerLifetimeValue decimal.Decimal `json:"customer_lifetime_value"`
	ChurnProbability      float64         `json:"churn_probability"`

	// DaysSinceLastPurchase is nil for customers with no orders. It may be
	// negative when the calculation date precedes the last order.
	DaysSinceLastPurchase *int `json:"days_since_last_purchase,omitempty"`

	RecencyScore   int `json:"rfm_recency_score"`
	FrequencyScore int `json:"rfm_frequency_score"`
	MonetaryScore  int `json:"rfm_monetary_score"`

	Segment Segment `json:"customer_segment"`
}

// ProductSales is one entry of a day's top-selling products ranking.
type ProductSales struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailyMetrics is one aggregate row per (MetricDate, SourceType), covering
// orders whose ProcessedAt calendar date equals MetricDate.
type DailyMetrics struct {
	MetricDate time.Time  `json:"metric_date"`
	SourceType SourceType `json:"source_type"`

	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalOrders       int             `json:"total_orders"`
	TotalCustomers    int             `json:"total_customers"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TotalProductsSold int             `json:"total_products_sold"`

	// NewCustomers/ReturningCustomers use the same-day order-count heuristic:
	// exactly one order that day is "new", more than one is "returning".
	NewCustomers       int `json:"new_customers"`
	ReturningCustomers int `json:"returning_customers"`

	RevenueByChannel   map[string]decimal.Decimal `json:"revenue_by_source"`
	TopSellingProducts []ProductSales             `json:"top_selling_products"`
}

// CohortMetrics aggregates the customers whose first purchase falls in the
// same calendar month.
type CohortMetrics struct {
	// Cohort is the month key, formatted "YYYY-MM".
	Cohort        string          `json:"cohort"`
	CustomerCount int             `json:"customer_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AverageLTV    decimal.Decimal `json:"average_ltv"`
}

// RunStatus is the terminal (or in-memory transient) status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// ETLRunLog records the outcome of one orchestrator run for one source.
// It is held in memory while the run is in flight and persisted exactly once
// at completion; persisted rows are immutable.
type ETLRunLog struct {
	ID           string     `json:"id"`
	PipelineName string     `json:"pipeline_name"`
	SourceType   SourceType `json:"source_type"`
	Status       RunStatus  `json:"status"`

	RecordsExtracted   int `json:"records_extracted"`
	RecordsTransformed int `json:"records_transformed"`
	RecordsLoaded      int `json:"records_loaded"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata is the free-form load-result summary (per-entity inserted and
	// failed counts) on success, or stage context on failure.
	Metadata map[string]any `json:"metadata,omitempty"`
}
