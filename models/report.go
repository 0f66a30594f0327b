package models

// GroupSummary aggregates one pricing group for the console report.
type GroupSummary struct {
	Group           int
	Size            int
	MedianPrice     float64
	PriceStd        float64
	MeanRecommended float64
	Anomalies       int
}

// PricingReport holds the computed summary over one pricing run.
type PricingReport struct {
	RunID            string
	InputRecords     int
	LowOccupancy     int
	EmptyRecords     int
	OutlierRecords   int
	ImputedValues    int
	TotalProperties  int
	RejectedRows     int
	Anomalies        int
	AverageRecommend float64
	MinRecommend     float64
	MaxRecommend     float64
	Groups           []GroupSummary
	TierCounts       map[int]int
	TopPriced        []*Recommendation
}
