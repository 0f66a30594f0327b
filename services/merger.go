package services

import (
	"rental-pricing/models"
	"rental-pricing/utils"
)

// Merger assembles pricing records from the operating metrics, the cost
// sheet and the locality reference prices.
type Merger struct {
	logger *utils.Logger
}

func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge left-joins costs (keyed by property name) and refs (keyed by
// normalised locality) onto metrics. Gross margin is
// (avg_rent - cost_per_room) / avg_rent * 100 and stays missing when either
// input is missing or the rent is zero.
func (m *Merger) Merge(metrics []models.PropertyMetrics, costs map[string]float64, refs map[string]models.ReferencePrices) []models.PropertyRecord {
	out := make([]models.PropertyRecord, 0, len(metrics))
	noCost, noRef := 0, 0

	for _, pm := range metrics {
		rec := models.PropertyRecord{
			PropertyID:     pm.PropertyID,
			PropertyName:   pm.PropertyName,
			City:           pm.City,
			Locality:       pm.Locality,
			TotalOpex:      pm.TotalOpex,
			AvgRent:        pm.AvgRent,
			OccupancyRatio: pm.OccupancyRatio,
			MonthsOfStay:   pm.MonthsOfStay,
		}

		if cpr, ok := costs[normaliseText(pm.PropertyName)]; ok {
			rec.CostPerRoom = models.Float(cpr)
		} else {
			noCost++
		}

		if ref, ok := refs[localityKey(pm.Locality)]; ok {
			rec.Reference = ref
		} else {
			noRef++
		}

		if rec.AvgRent != nil && *rec.AvgRent != 0 && rec.CostPerRoom != nil {
			rec.GrossMargin = models.Float((*rec.AvgRent - *rec.CostPerRoom) / *rec.AvgRent * 100)
		}

		out = append(out, rec)
	}

	if noCost > 0 {
		m.logger.Warn("[merger] %d properties have no cost sheet entry", noCost)
	}
	if noRef > 0 {
		m.logger.Warn("[merger] %d properties have no locality reference prices", noRef)
	}
	m.logger.Info("[merger] Assembled %d property records", len(out))
	return out
}
