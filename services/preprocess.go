package services

import (
	"rental-pricing/models"
	"rental-pricing/utils"
)

// PreprocessOptions controls record filtering ahead of validation.
type PreprocessOptions struct {
	MinOccupancy   float64
	RemoveOutliers bool
	// IQRFactor widens the outlier fences; 1.5 when zero.
	IQRFactor float64
}

// PreprocessStats counts what each preprocessing step did.
type PreprocessStats struct {
	Input        int
	LowOccupancy int
	Empty        int
	Imputed      int
	Outliers     int
	Output       int
}

// Preprocessor filters, imputes and trims assembled records.
type Preprocessor struct {
	opts   PreprocessOptions
	logger *utils.Logger
}

func NewPreprocessor(opts PreprocessOptions, logger *utils.Logger) *Preprocessor {
	if opts.IQRFactor <= 0 {
		opts.IQRFactor = 1.5
	}
	return &Preprocessor{opts: opts, logger: logger}
}

// numericColumns names the columns returned by numericFields: the
// features in models.FeatureNames order, then the locality reference prices.
var numericColumns = append(append([]string(nil), models.FeatureNames...),
	"furnished_price", "semi_furnished_price", "unfurnished_price")

// numericFields returns pointers to the numeric fields of r that are
// imputed and outlier-filtered, in numericColumns order.
func numericFields(r *models.PropertyRecord) []**float64 {
	return []**float64{
		&r.TotalOpex,
		&r.CostPerRoom,
		&r.GrossMargin,
		&r.AvgRent,
		&r.OccupancyRatio,
		&r.MonthsOfStay,
		&r.Reference.Furnished,
		&r.Reference.SemiFurnished,
		&r.Reference.Unfurnished,
	}
}

// Process runs the steps in order: drop rows below the occupancy floor
// (a missing ratio counts as below), drop rows missing all of opex, cost per
// room, margin and rent, impute remaining gaps with the column median, and
// optionally drop rows outside the IQR fences of any numeric column.
// Reference prices are imputed and filtered like the features.
func (p *Preprocessor) Process(records []models.PropertyRecord) ([]models.PropertyRecord, PreprocessStats) {
	stats := PreprocessStats{Input: len(records)}

	kept := make([]models.PropertyRecord, 0, len(records))
	for _, r := range records {
		if r.OccupancyRatio == nil || *r.OccupancyRatio < p.opts.MinOccupancy {
			stats.LowOccupancy++
			continue
		}
		if r.TotalOpex == nil && r.CostPerRoom == nil && r.GrossMargin == nil && r.AvgRent == nil {
			stats.Empty++
			continue
		}
		kept = append(kept, r)
	}

	stats.Imputed = p.impute(kept)

	if p.opts.RemoveOutliers {
		before := len(kept)
		kept = p.removeOutliers(kept)
		stats.Outliers = before - len(kept)
	}

	stats.Output = len(kept)
	p.logger.Info("[preprocess] %d → %d records (low occupancy %d, empty %d, imputed %d values, outliers %d)",
		stats.Input, stats.Output, stats.LowOccupancy, stats.Empty, stats.Imputed, stats.Outliers)
	return kept, stats
}

func (p *Preprocessor) impute(records []models.PropertyRecord) int {
	imputed := 0
	for j, name := range numericColumns {
		var present []float64
		for i := range records {
			if v := *numericFields(&records[i])[j]; v != nil {
				present = append(present, *v)
			}
		}
		if len(present) == 0 {
			if len(records) > 0 {
				p.logger.Warn("[preprocess] Column %s has no values; leaving it missing", name)
			}
			continue
		}
		fill := utils.Median(present)
		for i := range records {
			field := numericFields(&records[i])[j]
			if *field == nil {
				*field = models.Float(fill)
				imputed++
			}
		}
	}
	return imputed
}

// removeOutliers applies the fences column by column, each computed on
// the rows that survived the previous columns.
func (p *Preprocessor) removeOutliers(records []models.PropertyRecord) []models.PropertyRecord {
	for j, name := range numericColumns {
		var values []float64
		for i := range records {
			if v := *numericFields(&records[i])[j]; v != nil {
				values = append(values, *v)
			}
		}
		if len(values) < 4 {
			continue
		}
		q1, q3 := utils.Quantile(values, 0.25), utils.Quantile(values, 0.75)
		iqr := q3 - q1
		lo, hi := q1-p.opts.IQRFactor*iqr, q3+p.opts.IQRFactor*iqr

		kept := records[:0:0]
		for i := range records {
			v := *numericFields(&records[i])[j]
			if v != nil && (*v < lo || *v > hi) {
				p.logger.Debug("[preprocess] %s: %s=%.2f outside [%.2f, %.2f]",
					records[i].PropertyID, name, *v, lo, hi)
				continue
			}
			kept = append(kept, records[i])
		}
		records = kept
	}
	return records
}
