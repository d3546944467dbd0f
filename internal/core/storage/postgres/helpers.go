package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// marshalMetadata marshals free-form run metadata. Nil metadata produces
// nil (SQL NULL) rather than a JSON "null" string.
func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	out, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	return out, nil
}

func marshalDailyMetricsJSON(m *v1.DailyMetrics) (revenueJSON, topJSON []byte, err error) {
	revenue := m.RevenueByChannel
	if revenue == nil {
		revenue = map[string]decimal.Decimal{}
	}
	revenueJSON, err = json.Marshal(revenue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal revenue by source: %w", err)
	}

	top := m.TopSellingProducts
	if top == nil {
		top = []v1.ProductSales{}
	}
	topJSON, err = json.Marshal(top)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal top selling products: %w", err)
	}
	return revenueJSON, topJSON, nil
}

func scanCustomer(row scanner) (*v1.Customer, error) {
	var c v1.Customer
	var first, last sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.SourceID,
		&c.SourceType,
		&c.Email,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.City,
		&c.Country,
		&c.TotalSpent,
		&c.OrdersCount,
		&first,
		&last,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer row: %w", err)
	}

	if first.Valid {
		t := first.Time
		c.FirstPurchaseDate = &t
	}
	if last.Valid {
		t := last.Time
		c.LastPurchaseDate = &t
	}
	return &c, nil
}

func scanProduct(row scanner) (*v1.Product, error) {
	var p v1.Product
	err := row.Scan(
		&p.ID,
		&p.SourceID,
		&p.SourceType,
		&p.Title,
		&p.SKU,
		&p.Price,
		&p.Category,
		&p.Vendor,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan product row: %w", err)
	}
	return &p, nil
}

func scanOrder(row scanner) (*v1.Order, error) {
	var o v1.Order
	var customerID sql.NullInt64

	err := row.Scan(
		&o.ID,
		&o.SourceID,
		&o.SourceType,
		&customerID,
		&o.CustomerEmail,
		&o.OrderNumber,
		&o.Subtotal,
		&o.Tax,
		&o.Discounts,
		&o.Shipping,
		&o.Total,
		&o.Currency,
		&o.FinancialStatus,
		&o.Channel,
		&o.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order row: %w", err)
	}

	if customerID.Valid {
		id := customerID.Int64
		o.CustomerID = &id
	}
	return &o, nil
}

func scanOrderItem(row scanner) (*v1.OrderItem, error) {
	var item v1.OrderItem
	var productID sql.NullInt64

	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.SourceID,
		&productID,
		&item.SourceProductID,
		&item.Title,
		&item.Quantity,
		&item.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order item row: %w", err)
	}

	if productID.Valid {
		id := productID.Int64
		item.ProductID = &id
	}
	return &item, nil
}

func scanRunLog(row scanner) (*v1.ETLRunLog, error) {
	var run v1.ETLRunLog
	var errorMessage sql.NullString
	var metadataJSON []byte

	err := row.Scan(
		&run.ID,
		&run.PipelineName,
		&run.SourceType,
		&run.Status,
		&run.RecordsExtracted,
		&run.RecordsTransformed,
		&run.RecordsLoaded,
		&run.StartedAt,
		&run.CompletedAt,
		&run.DurationSeconds,
		&errorMessage,
		&metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run log row: %w", err)
	}

	run.ErrorMessage = errorMessage.String
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run metadata: %w", err)
		}
	}
	return &run, nil
}

func scanCustomerMetrics(row scanner) (*v1.CustomerMetrics, error) {
	var m v1.CustomerMetrics
	var daysSinceLast sql.NullInt64

	err := row.Scan(
		&m.CustomerID,
		&m.CalculationDate,
		&m.TotalRevenue,
		&m.TotalOrders,
		&m.AverageOrderValue,
		&m.PurchaseFrequency,
		&m.CustomerLifespanDays,
		&m.CustomerLifetimeValue,
		&m.ChurnProbability,
		&daysSinceLast,
		&m.RecencyScore,
		&m.FrequencyScore,
		&m.MonetaryScore,
		&m.Segment,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan customer metrics row: %w", err)
	}

	if daysSinceLast.Valid {
		days := int(daysSinceLast.Int64)
		m.DaysSinceLastPurchase = &days
	}
	return &m, nil
}

func scanDailyMetrics(row scanner) (*v1.DailyMetrics, error) {
	var m v1.DailyMetrics
	var revenueJSON, topJSON []byte

	err := row.Scan(
		&m.MetricDate,
		&m.SourceType,
		&m.TotalRevenue,
		&m.TotalOrders,
		&m.TotalCustomers,
		&m.AverageOrderValue,
		&m.TotalProductsSold,
		&m.NewCustomers,
		&m.ReturningCustomers,
		&revenueJSON,
		&topJSON,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily metrics row: %w", err)
	}

	if len(revenueJSON) > 0 {
		if err := json.Unmarshal(revenueJSON, &m.RevenueByChannel); err != nil {
			return nil, fmt.Errorf("failed to unmarshal revenue by source: %w", err)
		}
	}
	if len(topJSON) > 0 {
		if err := json.Unmarshal(topJSON, &m.TopSellingProducts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal top selling products: %w", err)
		}
	}
	return &m, nil
}
