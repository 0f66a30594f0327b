package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rental-pricing/models"
)

var scenarioProfile = GroupProfile{
	MedianPrice:       1800,
	OpexMedian:        900,
	CostPerRoomMedian: 450,
	MarginMedian:      30,
	RentMedian:        1900,
}

func TestAllFourRulesCompose(t *testing.T) {
	f := models.PropertyFeatures{TotalOpex: 1000, CostPerRoom: 500, GrossMargin: 35, AvgRent: 2000}

	price, fired := ApplyAdjustments(f, scenarioProfile, DefaultAdjustments)
	assert.InDelta(t, 1886.35, price, 0.01)
	assert.InDelta(t, 1800*0.95*1.05*1.03*1.02, price, 1e-9)
	assert.Equal(t, []string{
		"opex_above_median",
		"cost_per_room_above_median",
		"margin_above_median",
		"rent_above_median",
	}, fired)

	tiers := DefaultTierPolicy().Tiers(price, f.GrossMargin)
	assert.Equal(t, []int{2169, 2074}, tiers)
}

func TestTwoRulesCompose(t *testing.T) {
	f := models.PropertyFeatures{TotalOpex: 1000, CostPerRoom: 400, GrossMargin: 35, AvgRent: 1800}

	price, fired := ApplyAdjustments(f, scenarioProfile, DefaultAdjustments)
	assert.InDelta(t, 1761.3, price, 1e-9)
	assert.Equal(t, []string{"opex_above_median", "margin_above_median"}, fired)
	assert.Equal(t, []int{2025, 1937}, DefaultTierPolicy().Tiers(price, f.GrossMargin))

	// reversed cascade fires the same rules in the opposite order
	_, reversedFired := ApplyAdjustments(f, scenarioProfile, reversed(DefaultAdjustments))
	assert.Equal(t, []string{"margin_above_median", "opex_above_median"}, reversedFired)
}

func TestSingleRuleIsOrderIndependent(t *testing.T) {
	f := models.PropertyFeatures{TotalOpex: 100, CostPerRoom: 100, GrossMargin: 10, AvgRent: 2500}

	price, fired := ApplyAdjustments(f, scenarioProfile, DefaultAdjustments)
	rPrice, rFired := ApplyAdjustments(f, scenarioProfile, reversed(DefaultAdjustments))

	assert.Equal(t, []string{"rent_above_median"}, fired)
	assert.Equal(t, fired, rFired)
	assert.Equal(t, price, rPrice)
	assert.InDelta(t, 1836, price, 1e-9)
}

func TestRulesRequireStrictlyGreater(t *testing.T) {
	f := models.PropertyFeatures{TotalOpex: 900, CostPerRoom: 450, GrossMargin: 30, AvgRent: 1900}

	price, fired := ApplyAdjustments(f, scenarioProfile, DefaultAdjustments)
	assert.Empty(t, fired)
	assert.Equal(t, 1800.0, price)
}

func TestTierCounts(t *testing.T) {
	policy := DefaultTierPolicy()
	tests := []struct {
		margin float64
		want   int
	}{
		{-12, 2},
		{0, 2},
		{39.999, 2},
		{40, 3},
		{72, 3},
	}
	for _, tt := range tests {
		tiers := policy.Tiers(2000, tt.margin)
		assert.Len(t, tiers, tt.want, "margin %v", tt.margin)
		for i := 1; i < len(tiers); i++ {
			assert.GreaterOrEqual(t, tiers[i-1], tiers[i])
		}
	}
	assert.Equal(t, []int{2301, 2201, 2101}, policy.Tiers(2001, 55))
}

func reversed(rules []Adjustment) []Adjustment {
	out := make([]Adjustment, len(rules))
	for i, r := range rules {
		out[len(rules)-1-i] = r
	}
	return out
}
