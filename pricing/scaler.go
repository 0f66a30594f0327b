package pricing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ScalerState is the per-feature mean and population standard deviation of
// a fitted batch. It is never modified after Fit.
type ScalerState struct {
	Mean []float64
	Std  []float64
}

// Scaler standardizes feature vectors to zero mean and unit variance.
type Scaler struct {
	names []string
	state *ScalerState
}

// NewScaler creates an unfitted Scaler. names label the feature columns in
// error messages.
func NewScaler(names []string) *Scaler {
	return &Scaler{names: names}
}

// Fit computes and stores the mean and standard deviation of every column.
// A column with zero variance fails with DegenerateFeatureError and leaves
// any previous state untouched.
func (s *Scaler) Fit(batch [][]float64) error {
	if len(batch) == 0 {
		return errors.New("pricing: scaler fit on empty batch")
	}
	width := len(batch[0])
	for i, row := range batch {
		if len(row) != width {
			return fmt.Errorf("pricing: scaler fit: row %d has %d features, want %d", i, len(row), width)
		}
	}

	st := &ScalerState{
		Mean: make([]float64, width),
		Std:  make([]float64, width),
	}
	col := make([]float64, len(batch))
	for j := 0; j < width; j++ {
		for i, row := range batch {
			col[i] = row[j]
		}
		m, std := stat.PopMeanStdDev(col, nil)
		if floats.Min(col) == floats.Max(col) || std == 0 || math.IsNaN(std) {
			return &DegenerateFeatureError{Feature: s.name(j)}
		}
		st.Mean[j] = m
		st.Std[j] = std
	}

	s.state = st
	return nil
}

// Transform standardizes one row: (x - mean) / std.
func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if s.state == nil {
		return nil, &NotFittedError{Component: "scaler"}
	}
	if len(row) != len(s.state.Mean) {
		return nil, fmt.Errorf("pricing: scaler transform: got %d features, want %d", len(row), len(s.state.Mean))
	}
	out := make([]float64, len(row))
	for j, x := range row {
		out[j] = (x - s.state.Mean[j]) / s.state.Std[j]
	}
	return out, nil
}

// TransformBatch standardizes every row of batch.
func (s *Scaler) TransformBatch(batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i, row := range batch {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// Inverse maps a standardized row back to raw feature units.
func (s *Scaler) Inverse(row []float64) ([]float64, error) {
	if s.state == nil {
		return nil, &NotFittedError{Component: "scaler"}
	}
	if len(row) != len(s.state.Mean) {
		return nil, fmt.Errorf("pricing: scaler inverse: got %d features, want %d", len(row), len(s.state.Mean))
	}
	out := make([]float64, len(row))
	for j, z := range row {
		out[j] = z*s.state.Std[j] + s.state.Mean[j]
	}
	return out, nil
}

// State returns a copy of the fitted mean and std.
func (s *Scaler) State() (ScalerState, error) {
	if s.state == nil {
		return ScalerState{}, &NotFittedError{Component: "scaler"}
	}
	return ScalerState{
		Mean: append([]float64(nil), s.state.Mean...),
		Std:  append([]float64(nil), s.state.Std...),
	}, nil
}

func (s *Scaler) name(j int) string {
	if j < len(s.names) {
		return s.names[j]
	}
	return fmt.Sprintf("feature_%d", j)
}
