package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pricing/models"
)

func scaledFixture(t *testing.T) ([][]float64, []models.PropertyFeatures) {
	t.Helper()
	props := groupedProperties()
	raw := make([]models.PropertyFeatures, len(props))
	vectors := make([][]float64, len(props))
	for i, p := range props {
		raw[i] = p.Features
		vectors[i] = p.Features.Vector()
	}
	s := NewScaler(models.FeatureNames)
	require.NoError(t, s.Fit(vectors))
	scaled, err := s.TransformBatch(vectors)
	require.NoError(t, err)
	return scaled, raw
}

func TestClusterModelSeparatesGroups(t *testing.T) {
	scaled, raw := scaledFixture(t)
	m, err := NewClusterModel(ClusterConfig{K: 3, Seed: 42, Workers: 2})
	require.NoError(t, err)
	require.NoError(t, m.Fit(scaled, raw))

	labels := m.Labels()
	require.Len(t, labels, 12)
	for g := 0; g < 3; g++ {
		for j := 1; j < 4; j++ {
			assert.Equal(t, labels[g*4], labels[g*4+j], "row %d should share a group with row %d", g*4+j, g*4)
		}
	}
	assert.NotEqual(t, labels[0], labels[4])
	assert.NotEqual(t, labels[4], labels[8])
	assert.NotEqual(t, labels[0], labels[8])

	_, converged := m.Iterations()
	assert.True(t, converged)
}

func TestClusterModelProfilesUseRawValues(t *testing.T) {
	scaled, raw := scaledFixture(t)
	m, err := NewClusterModel(ClusterConfig{K: 3, Seed: 42})
	require.NoError(t, err)
	require.NoError(t, m.Fit(scaled, raw))

	p, ok := m.Profile(m.Labels()[0])
	require.True(t, ok)
	assert.Equal(t, 4, p.Size)
	// rents 1000, 1020, 1040, 1060
	assert.InDelta(t, 1030, p.MedianPrice, 1e-9)
	assert.InDelta(t, 1030, p.RentMedian, 1e-9)
	assert.InDelta(t, 515, p.OpexMedian, 1e-9)
	assert.InDelta(t, 307.5, p.CostPerRoomMedian, 1e-9)
	assert.InDelta(t, 20.75, p.MarginMedian, 1e-9)
	assert.InDelta(t, 25.819888974716, p.PriceStd, 1e-9)

	assert.Len(t, m.Profiles(), 3)
}

func TestClusterModelDeterministic(t *testing.T) {
	scaled, raw := scaledFixture(t)

	a, _ := NewClusterModel(ClusterConfig{K: 3, Seed: 7, Workers: 1})
	b, _ := NewClusterModel(ClusterConfig{K: 3, Seed: 7, Workers: 4})
	require.NoError(t, a.Fit(scaled, raw))
	require.NoError(t, b.Fit(scaled, raw))

	assert.Equal(t, a.Labels(), b.Labels())
	assert.Equal(t, a.Profiles(), b.Profiles())
	assert.Equal(t, a.Centroids(), b.Centroids())
}

func TestClusterModelEmptyGroup(t *testing.T) {
	// two distinct points, three copies each: the third centroid duplicates
	// one of the first two and loses every tie
	rowA := []float64{-1, -1}
	rowB := []float64{1, 1}
	scaled := [][]float64{rowA, rowA, rowA, rowB, rowB, rowB}
	raw := make([]models.PropertyFeatures, len(scaled))

	m, err := NewClusterModel(ClusterConfig{K: 3, Seed: 42})
	require.NoError(t, err)

	err = m.Fit(scaled, raw)
	var eg *EmptyGroupError
	require.True(t, errors.As(err, &eg), "expected EmptyGroupError, got %v", err)
	assert.Equal(t, 2, eg.Group)

	_, err = m.Predict(rowA)
	var nf *NotFittedError
	assert.True(t, errors.As(err, &nf), "failed Fit must not publish centroids")
}

func TestClusterModelPredict(t *testing.T) {
	scaled, raw := scaledFixture(t)
	m, _ := NewClusterModel(ClusterConfig{K: 3, Seed: 42})

	_, err := m.Predict(scaled[0])
	var nf *NotFittedError
	require.True(t, errors.As(err, &nf))

	require.NoError(t, m.Fit(scaled, raw))
	labels := m.Labels()
	for i, row := range scaled {
		g, err := m.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, labels[i], g)
	}

	_, err = m.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestNewClusterModelRejectsBadK(t *testing.T) {
	_, err := NewClusterModel(ClusterConfig{K: 0})
	assert.Error(t, err)
}
