package services

import (
	"sort"

	"rental-pricing/models"
	"rental-pricing/utils"
)

// Averager reduces cleaned listings to single-bedroom reference rents per
// locality and furnishing state.
type Averager struct {
	logger *utils.Logger
}

func NewAverager(logger *utils.Logger) *Averager {
	return &Averager{logger: logger}
}

type localityFurnishing struct {
	locality   string
	furnishing string
}

// Average normalises every listing to a 1 BHK price (price / bhk, integer
// division) and averages per locality and furnishing, again with integer
// division. Output is sorted by locality, then furnishing.
func (a *Averager) Average(listings []*models.Listing) []models.LocalityAverage {
	sums := make(map[localityFurnishing][]int)
	for _, l := range listings {
		if l.BHK < 1 {
			continue
		}
		k := localityFurnishing{locality: l.Locality, furnishing: l.Furnishing}
		sums[k] = append(sums[k], l.Price/l.BHK)
	}

	out := make([]models.LocalityAverage, 0, len(sums))
	for k, prices := range sums {
		total := 0
		for _, p := range prices {
			total += p
		}
		out = append(out, models.LocalityAverage{
			Locality:   k.locality,
			BHK:        1,
			AvgPrice:   total / len(prices),
			Furnishing: k.furnishing,
			Samples:    len(prices),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Locality != out[j].Locality {
			return out[i].Locality < out[j].Locality
		}
		return out[i].Furnishing < out[j].Furnishing
	})

	a.logger.Info("[averager] %d listings → %d locality averages", len(listings), len(out))
	return out
}

// Pivot turns locality averages into reference prices keyed by the
// normalised locality name. A furnishing state with no sample stays nil.
func (a *Averager) Pivot(avgs []models.LocalityAverage) map[string]models.ReferencePrices {
	refs := make(map[string]models.ReferencePrices)
	for _, avg := range avgs {
		key := localityKey(avg.Locality)
		ref := refs[key]
		price := models.Float(float64(avg.AvgPrice))
		switch avg.Furnishing {
		case models.Furnished:
			ref.Furnished = price
		case models.SemiFurnished:
			ref.SemiFurnished = price
		case models.Unfurnished:
			ref.Unfurnished = price
		default:
			a.logger.Warn("[averager] Unknown furnishing %q for %s", avg.Furnishing, avg.Locality)
			continue
		}
		refs[key] = ref
	}
	return refs
}
