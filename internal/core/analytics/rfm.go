package analytics

import (
	v1 "github.com/storelens-lab/storelens/internal/api/v1"
	"github.com/shopspring/decimal"
)

// RFM is a recency/frequency/monetary score triple, each dimension in [1,5].
type RFM struct {
	Recency   int
	Frequency int
	Monetary  int
}

// Combined returns the summed score, in [3,15].
func (r RFM) Combined() int {
	return r.Recency + r.Frequency + r.Monetary
}

var (
	monetaryTier5 = decimal.NewFromInt(5000)
	monetaryTier4 = decimal.NewFromInt(2000)
	monetaryTier3 = decimal.NewFromInt(500)
	monetaryTier2 = decimal.NewFromInt(100)
)

// ScoreRFM scores a customer on all three RFM dimensions.
// Smaller recency (days since most recent order) scores higher.
func ScoreRFM(daysSinceLastPurchase, orderCount int, totalRevenue decimal.Decimal) RFM {
	return RFM{
		Recency:   scoreRecency(daysSinceLastPurchase),
		Frequency: scoreFrequency(orderCount),
		Monetary:  scoreMonetary(totalRevenue),
	}
}

func scoreRecency(days int) int {
	switch {
	case days <= 30:
		return 5
	case days <= 60:
		return 4
	case days <= 90:
		return 3
	case days <= 180:
		return 2
	default:
		return 1
	}
}

func scoreFrequency(orders int) int {
	switch {
	case orders >= 20:
		return 5
	case orders >= 10:
		return 4
	case orders >= 5:
		return 3
	case orders >= 2:
		return 2
	default:
		return 1
	}
}

func scoreMonetary(revenue decimal.Decimal) int {
	switch {
	case revenue.GreaterThanOrEqual(monetaryTier5):
		return 5
	case revenue.GreaterThanOrEqual(monetaryTier4):
		return 4
	case revenue.GreaterThanOrEqual(monetaryTier3):
		return 3
	case revenue.GreaterThanOrEqual(monetaryTier2):
		return 2
	default:
		return 1
	}
}

// SegmentFor maps an RFM triple to a customer segment.
// The rules overlap, so this is an ordered decision list: the first match
// wins, and reordering the rules changes the outcome.
func SegmentFor(r RFM) v1.Segment {
	combined := r.Combined()
	switch {
	case r.Recency >= 4 && r.Frequency >= 4 && r.Monetary >= 4:
		return v1.SegmentChampions
	case r.Frequency >= 3 && r.Monetary >= 3 && combined >= 9:
		return v1.SegmentLoyalCustomers
	case r.Recency >= 3 && r.Frequency >= 2 && combined >= 7:
		return v1.SegmentPotentialLoyalists
	case r.Recency >= 4 && r.Frequency <= 2:
		return v1.SegmentNewCustomers
	case r.Recency <= 2 && r.Frequency >= 3 && r.Monetary >= 3:
		return v1.SegmentAtRisk
	case r.Recency <= 2 && r.Monetary >= 4:
		return v1.SegmentCannotLose
	case r.Recency <= 2 && r.Frequency <= 2 && r.Monetary <= 2:
		return v1.SegmentHibernating
	case r.Monetary <= 2 && r.Frequency >= 3:
		return v1.SegmentPriceSensitive
	default:
		return v1.SegmentRegular
	}
}
