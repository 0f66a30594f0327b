package models

// PropertyMetrics is one row of the operating-metrics extract. Nullable
// columns stay nil when the source has no value.
type PropertyMetrics struct {
	PropertyID     string
	PropertyName   string
	City           string
	Locality       string
	TotalOpex      *float64
	AvgRent        *float64
	OccupancyRatio *float64
	MonthsOfStay   *float64
}

// ReferencePrices are market rents for the property's locality by
// furnishing state. They pass through pricing untouched.
type ReferencePrices struct {
	Furnished     *float64
	SemiFurnished *float64
	Unfurnished   *float64
}

// PropertyRecord is an assembled row before ingestion validation. Feature
// fields are pointers so a missing value can be told apart from zero.
type PropertyRecord struct {
	PropertyID     string   `json:"property_id" validate:"required"`
	PropertyName   string   `json:"property_name"`
	City           string   `json:"city"`
	Locality       string   `json:"locality"`
	TotalOpex      *float64 `json:"total_opex" validate:"required,gte=0"`
	CostPerRoom    *float64 `json:"cost_per_room" validate:"required,gte=0"`
	GrossMargin    *float64 `json:"gross_margin" validate:"required"`
	AvgRent        *float64 `json:"avg_rent" validate:"required"`
	OccupancyRatio *float64 `json:"occupancy_ratio" validate:"required,gte=0,lte=100"`
	MonthsOfStay   *float64 `json:"months_of_stay" validate:"required,gte=0"`

	Reference ReferencePrices `json:"-"`
}

// PropertyFeatures is the validated numeric feature row fed to the pricing engine.
type PropertyFeatures struct {
	TotalOpex      float64
	CostPerRoom    float64
	GrossMargin    float64
	AvgRent        float64
	OccupancyRatio float64
	MonthsOfStay   float64
}

// FeatureNames lists the feature columns in Vector order.
var FeatureNames = []string{
	"total_opex",
	"cost_per_room",
	"gross_margin",
	"avg_rent",
	"occupancy_ratio",
	"months_of_stay",
}

// Vector returns the features in FeatureNames order.
func (f PropertyFeatures) Vector() []float64 {
	return []float64{
		f.TotalOpex,
		f.CostPerRoom,
		f.GrossMargin,
		f.AvgRent,
		f.OccupancyRatio,
		f.MonthsOfStay,
	}
}

// Property is a validated record: identifier, features and pass-through prices.
type Property struct {
	ID        string
	Name      string
	Locality  string
	Features  PropertyFeatures
	Reference ReferencePrices
}

// Recommendation is the pricing engine's output for one property.
type Recommendation struct {
	PropertyID       string
	Group            int
	RecommendedPrice float64
	Tiers            []int
	AppliedRules     []string
	Anomaly          bool
	Reference        ReferencePrices
}

// Float returns a pointer to v. Handy for building nullable fields.
func Float(v float64) *float64 {
	return &v
}
