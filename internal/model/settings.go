package model

import "fmt"

// TierThreshold is the minimum spend and minimum points balance for a tier.
type TierThreshold struct {
	MinSpend  float64 `bson:"min_spend" json:"minSpend" yaml:"minSpend"`
	MinPoints float64 `bson:"min_points" json:"minPoints" yaml:"minPoints"`
}

// TierSettings holds one threshold per tier.
type TierSettings struct {
	Bronze   TierThreshold `bson:"bronze" json:"bronze" yaml:"bronze"`
	Silver   TierThreshold `bson:"silver" json:"silver" yaml:"silver"`
	Gold     TierThreshold `bson:"gold" json:"gold" yaml:"gold"`
	Platinum TierThreshold `bson:"platinum" json:"platinum" yaml:"platinum"`
}

// For returns the threshold configured for t.
func (s TierSettings) For(t Tier) TierThreshold {
	switch t {
	case Silver:
		return s.Silver
	case Gold:
		return s.Gold
	case Platinum:
		return s.Platinum
	}
	return s.Bronze
}

// DiscountSettings holds a discount percentage (0-100) per tier.
type DiscountSettings struct {
	Bronze   float64 `bson:"bronze" json:"bronze" yaml:"bronze"`
	Silver   float64 `bson:"silver" json:"silver" yaml:"silver"`
	Gold     float64 `bson:"gold" json:"gold" yaml:"gold"`
	Platinum float64 `bson:"platinum" json:"platinum" yaml:"platinum"`
}

func (s DiscountSettings) For(t Tier) float64 {
	switch t {
	case Silver:
		return s.Silver
	case Gold:
		return s.Gold
	case Platinum:
		return s.Platinum
	}
	return s.Bronze
}

// DeadlineSettings holds, per tier, the number of days a points tier stays
// valid after the last transaction.
type DeadlineSettings struct {
	Bronze   int `bson:"bronze" json:"bronze" yaml:"bronze"`
	Silver   int `bson:"silver" json:"silver" yaml:"silver"`
	Gold     int `bson:"gold" json:"gold" yaml:"gold"`
	Platinum int `bson:"platinum" json:"platinum" yaml:"platinum"`
}

func (s DeadlineSettings) For(t Tier) int {
	switch t {
	case Silver:
		return s.Silver
	case Gold:
		return s.Gold
	case Platinum:
		return s.Platinum
	}
	return s.Bronze
}

// Settings groups the three editable settings objects of a business.
type Settings struct {
	Tiers     TierSettings     `bson:"tiers" json:"tiers" yaml:"tiers"`
	Discounts DiscountSettings `bson:"discounts" json:"discounts" yaml:"discounts"`
	Deadlines DeadlineSettings `bson:"deadlines" json:"deadlines" yaml:"deadlines"`
}

// DefaultSettings is used when no settings file is configured.
func DefaultSettings() Settings {
	return Settings{
		Tiers: TierSettings{
			Bronze:   TierThreshold{MinSpend: 0, MinPoints: 0},
			Silver:   TierThreshold{MinSpend: 5000, MinPoints: 500},
			Gold:     TierThreshold{MinSpend: 20000, MinPoints: 2000},
			Platinum: TierThreshold{MinSpend: 50000, MinPoints: 5000},
		},
		Discounts: DiscountSettings{Bronze: 0, Silver: 5, Gold: 10, Platinum: 15},
		Deadlines: DeadlineSettings{Bronze: 30, Silver: 60, Gold: 90, Platinum: 120},
	}
}

// Validate checks that every value is non-negative and every discount is at
// most 100 percent. Threshold ordering across tiers is not checked here.
func (s Settings) Validate() error {
	for _, t := range TiersDescending {
		th := s.Tiers.For(t)
		if th.MinSpend < 0 || th.MinPoints < 0 {
			return fmt.Errorf("%s threshold must be non-negative", t)
		}
		if d := s.Discounts.For(t); d < 0 || d > 100 {
			return fmt.Errorf("%s discount must be between 0 and 100", t)
		}
		if s.Deadlines.For(t) < 0 {
			return fmt.Errorf("%s deadline must be non-negative", t)
		}
	}
	return nil
}

// NonMonotonicTiers returns the tiers whose spend or points threshold is
// lower than the tier directly below them.
func (s TierSettings) NonMonotonicTiers() []Tier {
	var out []Tier
	for t := Silver; t <= Platinum; t++ {
		cur, prev := s.For(t), s.For(t-1)
		if cur.MinSpend < prev.MinSpend || cur.MinPoints < prev.MinPoints {
			out = append(out, t)
		}
	}
	return out
}
