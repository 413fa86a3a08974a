package allocation

import (
	"time"

	"hostel-allocation-backend/config"
)

// RefundPolicy computes the credit owed when a student gives up a paid seat.
// price is the per-student price paid, occupiedFrom when the confirmed
// occupancy began. The exact proration rule is a product decision; keeping
// it behind this type means swapping the formula touches nothing else.
type RefundPolicy func(price int64, occupiedFrom, now time.Time) int64

// NewRefundPolicy builds the policy selected in configuration.
func NewRefundPolicy(cfg config.RefundConfig) RefundPolicy {
	switch cfg.Kind {
	case "none":
		return func(int64, time.Time, time.Time) int64 { return 0 }
	case "full":
		return func(price int64, _, _ time.Time) int64 { return price }
	default:
		return proratedPolicy(cfg.TermDays)
	}
}

// proratedPolicy refunds the unused share of the term at day granularity,
// rounding down. A seat given up on day 0 refunds the full price; one given
// up after the term ends refunds nothing.
func proratedPolicy(termDays int) RefundPolicy {
	return func(price int64, occupiedFrom, now time.Time) int64 {
		if price <= 0 {
			return 0
		}
		daysUsed := int(now.Sub(occupiedFrom).Hours() / 24)
		if daysUsed < 0 {
			daysUsed = 0
		}
		if daysUsed >= termDays {
			return 0
		}
		remaining := int64(termDays - daysUsed)
		return price * remaining / int64(termDays)
	}
}
