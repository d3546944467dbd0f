package analytics

import (
	"math"
	"sort"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/shopspring/decimal"
)

// All functions in this package are pure: no I/O, no hidden state. Callers may
// invoke them concurrently across independent customers.

// monthlyDiscountRate is the annual 10% discount rate applied monthly in the
// predictive CLV projection.
const monthlyDiscountRate = 0.1 / 12

// flatProjectionMonths caps the predictive CLV at a flat 3-year projection
// when retention makes the geometric series non-finite or negative.
const flatProjectionMonths = 36

// clvScale is the decimal scale CLV values are rounded to before persistence.
const clvScale = 4

// CustomerMetricsFor computes the full per-customer analytics row for the
// given calculation date. Orders may arrive in any order; they are sorted by
// ProcessedAt ascending before any lifespan math.
//
// A customer with no orders gets the "empty metrics" sentinel: zero monetary
// and count fields, churn probability 1, all RFM scores 1, segment Inactive,
// and a nil DaysSinceLastPurchase.
func CustomerMetricsFor(customer *v1.Customer, orders []*v1.Order, asOf time.Time) *v1.CustomerMetrics {
	m := &v1.CustomerMetrics{
		CalculationDate:   asOf,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	if customer != nil {
		m.CustomerID = customer.ID
	}

	if len(orders) == 0 {
		m.ChurnProbability = 1
		m.RecencyScore, m.FrequencyScore, m.MonetaryScore = 1, 1, 1
		m.Segment = v1.SegmentInactive
		m.CustomerLifetimeValue = decimal.Zero
		return m
	}

	sorted := make([]*v1.Order, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProcessedAt.Before(sorted[j].ProcessedAt)
	})

	totalOrders := len(sorted)
	totalRevenue := decimal.Zero
	for _, o := range sorted {
		totalRevenue = totalRevenue.Add(o.Total)
	}

	first := sorted[0].ProcessedAt
	last := sorted[totalOrders-1].ProcessedAt

	m.TotalOrders = totalOrders
	m.TotalRevenue = totalRevenue
	m.AverageOrderValue = totalRevenue.Div(decimal.NewFromInt(int64(totalOrders)))

	// A single-order customer has a lifespan of one day, never zero.
	lifespanDays := daysBetween(first, last)
	if lifespanDays < 1 {
		lifespanDays = 1
	}
	m.CustomerLifespanDays = lifespanDays

	// Not clamped: negative when asOf precedes the last order.
	daysSinceLast := daysBetween(last, asOf)
	m.DaysSinceLastPurchase = &daysSinceLast

	m.PurchaseFrequency = float64(totalOrders) / math.Max(float64(lifespanDays)/30, 1)
	m.ChurnProbability = ChurnProbability(daysSinceLast)

	aov, _ := m.AverageOrderValue.Float64()
	simpleCLV := aov * m.PurchaseFrequency * (float64(lifespanDays) / 30)
	m.CustomerLifetimeValue = decimal.NewFromFloat(
		(simpleCLV + predictiveCLV(aov, m.PurchaseFrequency, m.ChurnProbability)) / 2,
	).Round(clvScale)

	scores := ScoreRFM(daysSinceLast, totalOrders, totalRevenue)
	m.RecencyScore = scores.Recency
	m.FrequencyScore = scores.Frequency
	m.MonetaryScore = scores.Monetary
	m.Segment = SegmentFor(scores)

	return m
}

// predictiveCLV projects future value as a discounted geometric series of
// monthly revenue. When retention meets or exceeds 1 + the monthly discount
// rate the series diverges, so the projection falls back to a flat 3-year
// horizon.
func predictiveCLV(averageOrderValue, purchaseFrequency, churnProbability float64) float64 {
	monthlyRevenue := averageOrderValue * purchaseFrequency
	retention := 1 - churnProbability
	if retention >= 1+monthlyDiscountRate {
		return monthlyRevenue * flatProjectionMonths
	}
	return monthlyRevenue * retention / (1 + monthlyDiscountRate - retention)
}

// ChurnProbability is a step function of days since the last purchase.
// Each breakpoint is right-exclusive on its lower bound.
func ChurnProbability(daysSinceLastPurchase int) float64 {
	switch {
	case daysSinceLastPurchase < 30:
		return 0.05
	case daysSinceLastPurchase < 60:
		return 0.15
	case daysSinceLastPurchase < 90:
		return 0.25
	case daysSinceLastPurchase < 180:
		return 0.45
	case daysSinceLastPurchase < 365:
		return 0.70
	default:
		return 0.90
	}
}

// daysBetween returns whole days from a to b, truncated toward zero.
// Negative when b precedes a.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
