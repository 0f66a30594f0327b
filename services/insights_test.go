package services

import (
	"bytes"
	"strings"
	"testing"

	"rental-pricing/models"
	"rental-pricing/pricing"
)

func sampleRun() (map[int]pricing.GroupProfile, []models.Recommendation) {
	profiles := map[int]pricing.GroupProfile{
		0: {Size: 2, MedianPrice: 1000, PriceStd: 14.142},
		1: {Size: 3, MedianPrice: 3000, PriceStd: 20},
	}
	recs := []models.Recommendation{
		{PropertyID: "a", Group: 0, RecommendedPrice: 950, Tiers: []int{1092, 1045}},
		{PropertyID: "b", Group: 0, RecommendedPrice: 1050, Tiers: []int{1207, 1155}, Anomaly: true},
		{PropertyID: "c", Group: 1, RecommendedPrice: 3000, Tiers: []int{3450, 3300, 3150}},
		{PropertyID: "d", Group: 1, RecommendedPrice: 3100, Tiers: []int{3565, 3410, 3255}},
		{PropertyID: "e", Group: 1, RecommendedPrice: 2900, Tiers: []int{3335, 3190}},
		{PropertyID: "f", Group: 1, RecommendedPrice: 2000, Tiers: []int{2300, 2200}},
	}
	return profiles, recs
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	r := svc.Generate("run-1", profiles, recs, PreprocessStats{}, 2)
	if r.TotalProperties != 6 {
		t.Errorf("TotalProperties: got %d, want 6", r.TotalProperties)
	}
	if r.RejectedRows != 2 {
		t.Errorf("RejectedRows: got %d, want 2", r.RejectedRows)
	}
	if r.Anomalies != 1 {
		t.Errorf("Anomalies: got %d, want 1", r.Anomalies)
	}
	if r.TierCounts[2] != 4 || r.TierCounts[3] != 2 {
		t.Errorf("TierCounts: got %v, want map[2:4 3:2]", r.TierCounts)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	r := svc.Generate("run-1", profiles, recs, PreprocessStats{}, 0)
	if r.AverageRecommend != 2166.67 {
		t.Errorf("AverageRecommend: got %.2f, want 2166.67", r.AverageRecommend)
	}
	if r.MinRecommend != 950 {
		t.Errorf("MinRecommend: got %.2f, want 950", r.MinRecommend)
	}
	if r.MaxRecommend != 3100 {
		t.Errorf("MaxRecommend: got %.2f, want 3100", r.MaxRecommend)
	}
}

func TestInsightGroups(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	r := svc.Generate("run-1", profiles, recs, PreprocessStats{}, 0)
	if len(r.Groups) != 2 {
		t.Fatalf("Groups len: got %d, want 2", len(r.Groups))
	}
	g0 := r.Groups[0]
	if g0.Group != 0 || g0.MeanRecommended != 1000 || g0.Anomalies != 1 || g0.PriceStd != 14.14 {
		t.Errorf("group 0: got %+v", g0)
	}
	if r.Groups[1].MeanRecommended != 2750 {
		t.Errorf("group 1 MeanRecommended: got %.2f, want 2750", r.Groups[1].MeanRecommended)
	}
}

func TestInsightTopPriced(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	r := svc.Generate("run-1", profiles, recs, PreprocessStats{}, 0)
	if len(r.TopPriced) != 5 {
		t.Fatalf("TopPriced len: got %d, want 5", len(r.TopPriced))
	}
	if r.TopPriced[0].PropertyID != "d" {
		t.Errorf("TopPriced[0]: got %q, want %q", r.TopPriced[0].PropertyID, "d")
	}
	if r.TopPriced[4].PropertyID != "b" {
		t.Errorf("TopPriced[4]: got %q, want %q", r.TopPriced[4].PropertyID, "b")
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate("run-1", nil, nil, PreprocessStats{}, 0)
	if r.TotalProperties != 0 {
		t.Errorf("expected 0 total properties for empty input")
	}
}

func TestInsightCarriesPreprocessCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	prep := PreprocessStats{Input: 12, LowOccupancy: 3, Empty: 1, Imputed: 4, Outliers: 2, Output: 6}
	r := svc.Generate("run-7", profiles, recs, prep, 0)

	if r.InputRecords != 12 || r.LowOccupancy != 3 || r.EmptyRecords != 1 || r.OutlierRecords != 2 || r.ImputedValues != 4 {
		t.Errorf("preprocess counts not carried: %+v", r)
	}

	var buf bytes.Buffer
	svc.Fprint(&buf, r)
	for _, want := range []string{"Low occupancy dropped", "Outliers dropped", "Values imputed"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	profiles, recs := sampleRun()
	var buf bytes.Buffer
	svc.Fprint(&buf, svc.Generate("run-42", profiles, recs, PreprocessStats{}, 1))

	out := buf.String()
	for _, want := range []string{"run-42", "Pricing Groups", "2 options", "3 options"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
