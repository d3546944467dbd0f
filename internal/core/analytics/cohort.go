package analytics

import (
	"sort"

	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/shopspring/decimal"
)

// cohortKeyLayout formats a first-purchase month as "YYYY-MM".
const cohortKeyLayout = "2006-01"

// AnalyzeCohorts groups customers by the calendar month of their first
// purchase and aggregates each cohort's lifetime revenue. Customers without
// a first purchase date are excluded. Cohorts are returned in ascending
// month order.
func AnalyzeCohorts(customers []*v1.Customer, orders []*v1.Order) []*v1.CohortMetrics {
	revenueByCustomer := make(map[int64]decimal.Decimal)
	for _, o := range orders {
		if o.CustomerID == nil {
			continue
		}
		revenueByCustomer[*o.CustomerID] = revenueByCustomer[*o.CustomerID].Add(o.Total)
	}

	cohorts := map[string]*v1.CohortMetrics{}
	for _, c := range customers {
		if c.FirstPurchaseDate == nil {
			continue
		}
		key := c.FirstPurchaseDate.UTC().Format(cohortKeyLayout)
		cohort, ok := cohorts[key]
		if !ok {
			cohort = &v1.CohortMetrics{Cohort: key, TotalRevenue: decimal.Zero}
			cohorts[key] = cohort
		}
		cohort.CustomerCount++
		cohort.TotalRevenue = cohort.TotalRevenue.Add(revenueByCustomer[c.ID])
	}

	out := make([]*v1.CohortMetrics, 0, len(cohorts))
	for _, cohort := range cohorts {
		cohort.AverageLTV = cohort.TotalRevenue.Div(decimal.NewFromInt(int64(cohort.CustomerCount)))
		out = append(out, cohort)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cohort < out[j].Cohort })
	return out
}
