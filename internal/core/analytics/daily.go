package analytics

import (
	"sort"
	"time"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/shopspring/decimal"
)

// defaultChannel is the revenue bucket for orders without an attributed
// sales channel.
const defaultChannel = "direct"

// topProductLimit caps the top-selling products ranking.
const topProductLimit = 10

// DailyMetricsFor aggregates the orders whose ProcessedAt calendar date
// (UTC, time-of-day ignored) equals calculationDate's calendar date.
// Orders from other dates are silently excluded, so callers may pass a
// superset. The products catalog is only consulted for titles when a line
// item carries none.
func DailyMetricsFor(orders []*v1.Order, products []*v1.Product, source v1.SourceType, calculationDate time.Time) *v1.DailyMetrics {
	m := &v1.DailyMetrics{
		MetricDate:        truncateToDay(calculationDate),
		SourceType:        source,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		RevenueByChannel:  map[string]decimal.Decimal{},
	}

	titles := make(map[string]string, len(products))
	for _, p := range products {
		titles[p.SourceID] = p.Title
	}

	type productAccum struct {
		sales     v1.ProductSales
		firstSeen int // order index of first appearance; tie-break for equal revenue
	}
	productTotals := map[string]*productAccum{}
	ordersPerCustomer := map[int64]int{}
	included := 0

	for _, o := range orders {
		if !sameCalendarDay(o.ProcessedAt, calculationDate) {
			continue
		}

		m.TotalRevenue = m.TotalRevenue.Add(o.Total)
		m.TotalOrders++

		channel := o.Channel
		if channel == "" {
			channel = defaultChannel
		}
		m.RevenueByChannel[channel] = m.RevenueByChannel[channel].Add(o.Total)

		if o.CustomerID != nil {
			ordersPerCustomer[*o.CustomerID]++
		}

		for _, item := range o.LineItems {
			m.TotalProductsSold += item.Quantity

			key := item.SourceProductID
			if key == "" {
				key = item.Title
			}
			acc, ok := productTotals[key]
			if !ok {
				title := item.Title
				if title == "" {
					title = titles[item.SourceProductID]
				}
				acc = &productAccum{
					sales: v1.ProductSales{
						ProductID: item.SourceProductID,
						Title:     title,
						Revenue:   decimal.Zero,
					},
					firstSeen: included,
				}
				productTotals[key] = acc
			}
			acc.sales.Quantity += item.Quantity
			acc.sales.Revenue = acc.sales.Revenue.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		included++
	}

	m.TotalCustomers = len(ordersPerCustomer)
	if m.TotalOrders > 0 {
		m.AverageOrderValue = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalOrders)))
	}

	// Same-day heuristic, not lifetime first-purchase detection: one order
	// that day counts as new, several count as returning.
	for _, count := range ordersPerCustomer {
		if count == 1 {
			m.NewCustomers++
		} else {
			m.ReturningCustomers++
		}
	}

	ranked := make([]*productAccum, 0, len(productTotals))
	for _, acc := range productTotals {
		ranked = append(ranked, acc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].sales.Revenue.Equal(ranked[j].sales.Revenue) {
			return ranked[i].sales.Revenue.GreaterThan(ranked[j].sales.Revenue)
		}
		return ranked[i].firstSeen < ranked[j].firstSeen
	})
	if len(ranked) > topProductLimit {
		ranked = ranked[:topProductLimit]
	}
	m.TopSellingProducts = make([]v1.ProductSales, len(ranked))
	for i, acc := range ranked {
		m.TopSellingProducts[i] = acc.sales
	}

	return m
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
