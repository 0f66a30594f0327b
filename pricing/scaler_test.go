package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerStandardizes(t *testing.T) {
	s := NewScaler([]string{"a", "b"})
	require.NoError(t, s.Fit([][]float64{{1, 10}, {3, 30}}))

	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 20}, st.Mean)
	assert.Equal(t, []float64{1, 10}, st.Std)

	z, err := s.Transform([]float64{3, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -2}, z, 1e-12)
}

func TestScalerRoundTrip(t *testing.T) {
	batch := [][]float64{
		{1200, 450, 32.5, 1900, 88, 6.5},
		{800, 300, -4, 1100, 40, 2},
		{3100, 990, 61, 4200, 97, 11.25},
	}
	s := NewScaler(nil)
	require.NoError(t, s.Fit(batch))

	for _, row := range batch {
		z, err := s.Transform(row)
		require.NoError(t, err)
		back, err := s.Inverse(z)
		require.NoError(t, err)
		assert.InDeltaSlice(t, row, back, 1e-9)
	}
}

func TestScalerNotFitted(t *testing.T) {
	s := NewScaler(nil)

	_, err := s.Transform([]float64{1})
	var nf *NotFittedError
	assert.True(t, errors.As(err, &nf), "Transform before Fit should return NotFittedError, got %v", err)

	_, err = s.Inverse([]float64{1})
	assert.True(t, errors.As(err, &nf))
}

func TestScalerZeroVariance(t *testing.T) {
	s := NewScaler([]string{"total_opex", "months_of_stay"})
	err := s.Fit([][]float64{{1, 5}, {2, 5}, {3, 5}})

	var de *DegenerateFeatureError
	require.True(t, errors.As(err, &de), "expected DegenerateFeatureError, got %v", err)
	assert.Equal(t, "months_of_stay", de.Feature)

	_, err = s.State()
	assert.Error(t, err, "failed Fit must not leave state behind")
}

func TestScalerWidthMismatch(t *testing.T) {
	s := NewScaler(nil)
	assert.Error(t, s.Fit([][]float64{{1, 2}, {3}}))

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err := s.Transform([]float64{1})
	assert.Error(t, err)
}
