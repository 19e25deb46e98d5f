package ledger

import (
	"time"

	"loyalty-ledger/internal/model"
)

const day = 24 * time.Hour

// Eligibility describes whether a customer's points-tier discount is still
// active. The pointer fields are nil for a customer with no history.
type Eligibility struct {
	Eligible                 bool        `json:"eligible"`
	DaysSinceLastTransaction *int        `json:"daysSinceLastTransaction"`
	DeadlineDays             *int        `json:"deadlineDays"`
	PointsTier               *model.Tier `json:"pointsTier"`
}

// Evaluate reports discount eligibility for c at now. The deadline is keyed
// to the points tier, not the spend or effective tier.
func Evaluate(c model.Customer, deadlines model.DeadlineSettings, tiers model.TierSettings, now time.Time) Eligibility {
	last, ok := lastTransaction(c.History)
	if !ok {
		return Eligibility{Eligible: true}
	}

	days := int(now.Sub(last) / day)
	pointsTier := ClassifyByPoints(c, tiers)
	deadline := deadlines.For(pointsTier)

	return Eligibility{
		Eligible:                 days <= deadline,
		DaysSinceLastTransaction: &days,
		DeadlineDays:             &deadline,
		PointsTier:               &pointsTier,
	}
}

// RemainingDays is the validity window left before the evaluated
// transaction, clamped at zero. ok is false when there is no prior history.
func (e Eligibility) RemainingDays() (days int, ok bool) {
	if e.DeadlineDays == nil || e.DaysSinceLastTransaction == nil {
		return 0, false
	}
	return max(0, *e.DeadlineDays-*e.DaysSinceLastTransaction), true
}

func lastTransaction(history []model.TransactionHistoryEntry) (time.Time, bool) {
	if len(history) == 0 {
		return time.Time{}, false
	}
	last := history[0].Timestamp
	for _, h := range history[1:] {
		if h.Timestamp.After(last) {
			last = h.Timestamp
		}
	}
	return last, true
}
