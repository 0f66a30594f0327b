package pricing

import (
	"fmt"

	"rental-pricing/models"
)

// groupedProperties returns three well separated clusters of four
// properties each. Members differ slightly in every feature.
func groupedProperties() []models.Property {
	bases := []models.PropertyFeatures{
		{TotalOpex: 500, CostPerRoom: 300, GrossMargin: 20, AvgRent: 1000, OccupancyRatio: 60, MonthsOfStay: 4},
		{TotalOpex: 2000, CostPerRoom: 900, GrossMargin: 45, AvgRent: 3000, OccupancyRatio: 85, MonthsOfStay: 9},
		{TotalOpex: 5000, CostPerRoom: 1500, GrossMargin: 60, AvgRent: 6000, OccupancyRatio: 95, MonthsOfStay: 14},
	}

	var props []models.Property
	for g, b := range bases {
		for j := 0; j < 4; j++ {
			d := float64(j)
			f := b
			f.TotalOpex += d * 10
			f.CostPerRoom += d * 5
			f.GrossMargin += d * 0.5
			f.AvgRent += d * 20
			f.OccupancyRatio += d * 0.5
			f.MonthsOfStay += d * 0.1
			props = append(props, models.Property{
				ID:       fmt.Sprintf("g%d-p%d", g, j),
				Features: f,
				Reference: models.ReferencePrices{
					Furnished: models.Float(b.AvgRent * 1.2),
				},
			})
		}
	}
	return props
}

func testConfig(k int) Config {
	cfg := DefaultConfig()
	cfg.Clusters = k
	cfg.Workers = 3
	return cfg
}
