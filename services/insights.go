package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"rental-pricing/models"
	"rental-pricing/pricing"
	"rental-pricing/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises one pricing run. profiles come from the fitted
// snapshot; recs are the recommendations produced from it. prep and
// rejected count the records dropped before fitting.
func (s *InsightService) Generate(runID string, profiles map[int]pricing.GroupProfile, recs []models.Recommendation, prep PreprocessStats, rejected int) *models.PricingReport {
	report := &models.PricingReport{
		RunID:          runID,
		InputRecords:   prep.Input,
		LowOccupancy:   prep.LowOccupancy,
		EmptyRecords:   prep.Empty,
		OutlierRecords: prep.Outliers,
		ImputedValues:  prep.Imputed,
		RejectedRows:   rejected,
		TierCounts:     make(map[int]int),
	}

	groupIDs := make([]int, 0, len(profiles))
	for g := range profiles {
		groupIDs = append(groupIDs, g)
	}
	sort.Ints(groupIDs)

	byGroup := make(map[int][]models.Recommendation)
	for _, r := range recs {
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}

	for _, g := range groupIDs {
		p := profiles[g]
		summary := models.GroupSummary{
			Group:       g,
			Size:        p.Size,
			MedianPrice: round2(p.MedianPrice),
			PriceStd:    round2(p.PriceStd),
		}
		var total float64
		for _, r := range byGroup[g] {
			total += r.RecommendedPrice
			if r.Anomaly {
				summary.Anomalies++
			}
		}
		if n := len(byGroup[g]); n > 0 {
			summary.MeanRecommended = round2(total / float64(n))
		}
		report.Groups = append(report.Groups, summary)
	}

	if len(recs) == 0 {
		return report
	}
	report.TotalProperties = len(recs)

	ranked := make([]*models.Recommendation, len(recs))
	report.MinRecommend = recs[0].RecommendedPrice
	report.MaxRecommend = recs[0].RecommendedPrice
	var total float64
	for i := range recs {
		r := &recs[i]
		ranked[i] = r
		total += r.RecommendedPrice
		report.MinRecommend = min(report.MinRecommend, r.RecommendedPrice)
		report.MaxRecommend = max(report.MaxRecommend, r.RecommendedPrice)
		report.TierCounts[len(r.Tiers)]++
		if r.Anomaly {
			report.Anomalies++
		}
	}
	report.AverageRecommend = round2(total / float64(len(recs)))
	report.MinRecommend = round2(report.MinRecommend)
	report.MaxRecommend = round2(report.MaxRecommend)

	// Top 5 by recommended price
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RecommendedPrice > ranked[j].RecommendedPrice
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	report.TopPriced = ranked

	return report
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.PricingReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.PricingReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 RENTAL PRICING SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run id                 : \033[1m%s\033[0m\n", r.RunID)
	fmt.Fprintf(w, "  Records loaded         : \033[1m%d\033[0m\n", r.InputRecords)
	fmt.Fprintf(w, "  Low occupancy dropped  : \033[1m%d\033[0m\n", r.LowOccupancy)
	fmt.Fprintf(w, "  Empty rows dropped     : \033[1m%d\033[0m\n", r.EmptyRecords)
	fmt.Fprintf(w, "  Outliers dropped       : \033[1m%d\033[0m\n", r.OutlierRecords)
	fmt.Fprintf(w, "  Values imputed         : \033[1m%d\033[0m\n", r.ImputedValues)
	fmt.Fprintf(w, "  Rejected rows          : \033[1m%d\033[0m\n", r.RejectedRows)
	fmt.Fprintf(w, "  Properties priced      : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Fprintf(w, "  Anomalous properties   : \033[1m%d\033[0m\n", r.Anomalies)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Recommended Rent (per month)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalProperties > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m₹%.2f\033[0m\n", r.AverageRecommend)
		fmt.Fprintf(w, "  Minimum : \033[1;32m₹%.2f\033[0m\n", r.MinRecommend)
		fmt.Fprintf(w, "  Maximum : \033[1;32m₹%.2f\033[0m\n", r.MaxRecommend)
	} else {
		fmt.Fprintf(w, "  No recommendations available\n")
	}
	fmt.Fprintln(w)

	// Groups
	fmt.Fprintf(w, "\033[1;33m  Pricing Groups\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Groups) == 0 {
		fmt.Fprintf(w, "  No groups fitted\n")
	} else {
		fmt.Fprintf(w, "  %-6s %5s %12s %10s %12s %4s\n", "group", "size", "median", "std", "mean rec.", "anom")
		for _, g := range r.Groups {
			fmt.Fprintf(w, "  %-6d %5d %12.2f %10.2f %12.2f %4d\n",
				g.Group, g.Size, g.MedianPrice, g.PriceStd, g.MeanRecommended, g.Anomalies)
		}
	}
	fmt.Fprintln(w)

	// Tier distribution
	fmt.Fprintf(w, "\033[1;33m  Pricing Options Offered\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	counts := make([]int, 0, len(r.TierCounts))
	for n := range r.TierCounts {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	for _, n := range counts {
		bar := strings.Repeat("█", min(r.TierCounts[n], 40))
		fmt.Fprintf(w, "  %d options %s (%d)\n", n, bar, r.TierCounts[n])
	}
	fmt.Fprintln(w)

	// ── TOP 5 HIGHEST PRICED ─────────────────────────────────────────────
	fmt.Fprintf(w, "\033[1;33m  Top 5 Highest Recommended\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopPriced) == 0 {
		fmt.Fprintf(w, "  No recommendations found\n")
	} else {
		for i, rec := range r.TopPriced {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-28s group %-3d \033[1;32m₹%.2f\033[0m %v\n",
				i+1, truncate(rec.PropertyID, 28), rec.Group, rec.RecommendedPrice, rec.Tiers)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
