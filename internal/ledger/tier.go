// Package ledger implements the loyalty transaction engine: tier
// classification, discount eligibility, bill computation and the state
// transition applied to a customer when a transaction is recorded.
//
// Every function is a pure function of its arguments. Callers own the
// customer collection and must serialize compute+apply per business.
package ledger

import "loyalty-ledger/internal/model"

// TierInfo carries the three classifications of a customer.
type TierInfo struct {
	SpendTier     model.Tier `json:"spendTier"`
	PointsTier    model.Tier `json:"pointsTier"`
	EffectiveTier model.Tier `json:"effectiveTier"`
}

// ClassifyBySpend returns the highest tier whose minimum spend the customer
// has reached.
func ClassifyBySpend(c model.Customer, tiers model.TierSettings) model.Tier {
	for _, t := range model.TiersDescending {
		if c.TotalSpent >= tiers.For(t).MinSpend {
			return t
		}
	}
	return model.Bronze
}

// ClassifyByPoints returns the highest tier whose minimum points balance the
// customer holds.
func ClassifyByPoints(c model.Customer, tiers model.TierSettings) model.Tier {
	for _, t := range model.TiersDescending {
		if c.Points >= tiers.For(t).MinPoints {
			return t
		}
	}
	return model.Bronze
}

// ClassifyEffective returns the highest tier reached by either criterion.
func ClassifyEffective(c model.Customer, tiers model.TierSettings) model.Tier {
	for _, t := range model.TiersDescending {
		th := tiers.For(t)
		if c.TotalSpent >= th.MinSpend || c.Points >= th.MinPoints {
			return t
		}
	}
	return model.Bronze
}

func Classify(c model.Customer, tiers model.TierSettings) TierInfo {
	return TierInfo{
		SpendTier:     ClassifyBySpend(c, tiers),
		PointsTier:    ClassifyByPoints(c, tiers),
		EffectiveTier: ClassifyEffective(c, tiers),
	}
}
