package pricing

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"rental-pricing/models"
)

// Validator converts assembled PropertyRecords into Properties at the
// ingestion boundary. Missing, non-finite or out-of-range features are
// rejected with a ValidationError naming the field.
type Validator struct {
	v *validator.Validate
}

// RowError pairs a rejected row index with its validation error.
type RowError struct {
	Row int
	Err error
}

// NewValidator builds a Validator that reports fields by their json names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks one record and returns its Property on success.
func (val *Validator) Validate(rec models.PropertyRecord) (models.Property, error) {
	if err := val.v.Struct(rec); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.Property{}, &ValidationError{
				PropertyID: rec.PropertyID,
				Field:      fe.Field(),
				Reason:     describe(fe),
			}
		}
		return models.Property{}, fmt.Errorf("pricing: validate %s: %w", rec.PropertyID, err)
	}

	fields := []struct {
		name string
		v    float64
	}{
		{"total_opex", *rec.TotalOpex},
		{"cost_per_room", *rec.CostPerRoom},
		{"gross_margin", *rec.GrossMargin},
		{"avg_rent", *rec.AvgRent},
		{"occupancy_ratio", *rec.OccupancyRatio},
		{"months_of_stay", *rec.MonthsOfStay},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return models.Property{}, &ValidationError{
				PropertyID: rec.PropertyID,
				Field:      f.name,
				Reason:     "not a finite number",
			}
		}
	}

	return models.Property{
		ID:       rec.PropertyID,
		Name:     rec.PropertyName,
		Locality: rec.Locality,
		Features: models.PropertyFeatures{
			TotalOpex:      *rec.TotalOpex,
			CostPerRoom:    *rec.CostPerRoom,
			GrossMargin:    *rec.GrossMargin,
			AvgRent:        *rec.AvgRent,
			OccupancyRatio: *rec.OccupancyRatio,
			MonthsOfStay:   *rec.MonthsOfStay,
		},
		Reference: rec.Reference,
	}, nil
}

// ValidateBatch validates every record. Rejected rows are returned alongside
// the valid ones and do not stop the batch.
func (val *Validator) ValidateBatch(records []models.PropertyRecord) ([]models.Property, []RowError) {
	valid := make([]models.Property, 0, len(records))
	var rejected []RowError
	for i, rec := range records {
		p, err := val.Validate(rec)
		if err != nil {
			rejected = append(rejected, RowError{Row: i, Err: err})
			continue
		}
		valid = append(valid, p)
	}
	return valid, rejected
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "missing value"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
