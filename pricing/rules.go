package pricing

import (
	"math"

	"rental-pricing/models"
)

// Adjustment is one rule of the pricing cascade: when Applies holds, the
// running price is multiplied by Multiplier.
type Adjustment struct {
	Name       string
	Multiplier float64
	Applies    func(f models.PropertyFeatures, g GroupProfile) bool
}

// DefaultAdjustments is the cascade in the order it is applied.
var DefaultAdjustments = []Adjustment{
	{
		Name:       "opex_above_median",
		Multiplier: 0.95,
		Applies: func(f models.PropertyFeatures, g GroupProfile) bool {
			return f.TotalOpex > g.OpexMedian
		},
	},
	{
		Name:       "cost_per_room_above_median",
		Multiplier: 1.05,
		Applies: func(f models.PropertyFeatures, g GroupProfile) bool {
			return f.CostPerRoom > g.CostPerRoomMedian
		},
	},
	{
		Name:       "margin_above_median",
		Multiplier: 1.03,
		Applies: func(f models.PropertyFeatures, g GroupProfile) bool {
			return f.GrossMargin > g.MarginMedian
		},
	},
	{
		Name:       "rent_above_median",
		Multiplier: 1.02,
		Applies: func(f models.PropertyFeatures, g GroupProfile) bool {
			return f.AvgRent > g.RentMedian
		},
	},
}

// ApplyAdjustments folds rules over the group's median price and returns
// the adjusted price plus the names of the rules that fired, in order.
func ApplyAdjustments(f models.PropertyFeatures, g GroupProfile, rules []Adjustment) (float64, []string) {
	price := g.MedianPrice
	var fired []string
	for _, r := range rules {
		if r.Applies(f, g) {
			price *= r.Multiplier
			fired = append(fired, r.Name)
		}
	}
	return price, fired
}

// TierPolicy turns an adjusted price into the list of offered prices.
type TierPolicy struct {
	// MarginThreshold splits low-margin properties (below) from the rest.
	MarginThreshold float64
	// LowMarginMarkups apply below the threshold, highest first.
	LowMarginMarkups []float64
	// Markups apply at or above the threshold, highest first.
	Markups []float64
}

// DefaultTierPolicy offers 15% and 10% markups below a 40% gross margin,
// and an extra 5% option at or above it.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		MarginThreshold:  40,
		LowMarginMarkups: []float64{1.15, 1.10},
		Markups:          []float64{1.15, 1.10, 1.05},
	}
}

// Tiers returns the truncated integer price of every markup for a property
// with the given gross margin.
func (p TierPolicy) Tiers(price, grossMargin float64) []int {
	markups := p.Markups
	if grossMargin < p.MarginThreshold {
		markups = p.LowMarginMarkups
	}
	tiers := make([]int, len(markups))
	for i, m := range markups {
		tiers[i] = int(math.Trunc(price * m))
	}
	return tiers
}
