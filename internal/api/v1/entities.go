package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the storefront platform a record originated from.
type SourceType string

const (
	SourceShopify       SourceType = "shopify"
	SourceWooCommerce   SourceType = "woocommerce"
	SourceCommercetools SourceType = "commercetools"
)

// Valid reports whether s is a known storefront platform.
func (s SourceType) Valid() bool {
	switch s {
	case SourceShopify, SourceWooCommerce, SourceCommercetools:
		return true
	}
	return false
}

// Customer is the canonical, source-agnostic customer record.
// Unique per (SourceType, SourceID). FirstPurchaseDate and LastPurchaseDate
// are derived from loaded orders after each run, not taken from the platform.
type Customer struct {
	// ID is the store-assigned surrogate key. Zero until persisted.
	ID int64 `json:"id"`

	// SourceID is the platform's identifier for this customer.
	SourceID   string     `json:"source_id"`
	SourceType SourceType `json:"source_type"`

	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`

	// TotalSpent and OrdersCount are the platform-reported lifetime aggregates.
	TotalSpent  decimal.Decimal `json:"total_spent"`
	OrdersCount int             `json:"orders_count"`

	FirstPurchaseDate *time.Time `json:"first_purchase_date,omitempty"`
	LastPurchaseDate  *time.Time `json:"last_purchase_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate ensures the customer carries the identity fields the store keys on.
func (c *Customer) Validate() error {
	if c.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if !c.SourceType.Valid() {
		return fmt.Errorf("unknown source_type %q", c.SourceType)
	}
	return nil
}

// Product is the canonical product record.
type Product struct {
	ID         int64      `json:"id"`
	SourceID   string     `json:"source_id"`
	SourceType SourceType `json:"source_type"`

	Title    string          `json:"title"`
	SKU      string          `json:"sku,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category,omitempty"`
	Vendor   string          `json:"vendor,omitempty"`
	Status   string          `json:"status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (p *Product) Validate() error {
	if p.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if !p.SourceType.Valid() {
		return fmt.Errorf("unknown source_type %q", p.SourceType)
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Order is the canonical order record.
// ProcessedAt is the authoritative timestamp for every date-bucketed
// calculation downstream; never bucket on ingestion or platform-updated times.
type Order struct {
	ID         int64      `json:"id"`
	SourceID   string     `json:"source_id"`
	SourceType SourceType `json:"source_type"`

	// CustomerID is nil until the order is linked to a loaded customer by
	// (email, source_type) during the Loading stage.
	CustomerID    *int64 `json:"customer_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`

	OrderNumber string `json:"order_number,omitempty"`

	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Discounts decimal.Decimal `json:"discounts"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency,omitempty"`

	FinancialStatus string `json:"financial_status,omitempty"`

	// Channel is the sales channel the order came through (web, pos, ...).
	// Empty means unattributed; daily aggregation buckets it as "direct".
	Channel string `json:"channel,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`

	LineItems []*OrderItem `json:"line_items,omitempty"`
}

func (o *Order) Validate() error {
	if o.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if !o.SourceType.Valid() {
		return fmt.Errorf("unknown source_type %q", o.SourceType)
	}
	if o.ProcessedAt.IsZero() {
		return fmt.Errorf("processed_at is required")
	}
	for i, item := range o.LineItems {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("line_items[%d]: %w", i, err)
		}
	}
	return nil
}

// OrderItem belongs to exactly one order. ProductID is nil when the
// referenced product has not been loaded (unresolved source reference).
type OrderItem struct {
	ID      int64 `json:"id"`
	OrderID int64 `json:"order_id"`

	// SourceID is the platform's line item identifier, used for idempotent
	// re-insertion when a run re-extracts an already loaded order.
	SourceID string `json:"source_id"`

	ProductID       *int64 `json:"product_id,omitempty"`
	SourceProductID string `json:"source_product_id,omitempty"`

	Title    string          `json:"title,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (i *OrderItem) Validate() error {
	if i.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if i.Quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	return nil
}
