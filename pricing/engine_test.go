package pricing

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-pricing/models"
	"rental-pricing/utils"
)

func newTestEngine(t *testing.T, k int) *Engine {
	t.Helper()
	e, err := NewEngine(testConfig(k), utils.Discard())
	require.NoError(t, err)
	return e
}

func TestRecommendBeforeFit(t *testing.T) {
	e := newTestEngine(t, 3)

	_, err := e.Recommend(groupedProperties()[0])
	var nf *NotFittedError
	assert.True(t, errors.As(err, &nf), "expected NotFittedError, got %v", err)

	_, err = e.RecommendAll(context.Background(), groupedProperties())
	assert.True(t, errors.As(err, &nf))
}

func TestFitIsDeterministic(t *testing.T) {
	props := groupedProperties()

	a, err := newTestEngine(t, 3).Fit(props)
	require.NoError(t, err)
	b, err := newTestEngine(t, 3).Fit(props)
	require.NoError(t, err)

	assert.Equal(t, a.Labels(), b.Labels())
	assert.Equal(t, a.Profiles(), b.Profiles())
	assert.Equal(t, a.AnomalyFlags(), b.AnomalyFlags())
	assert.NotEqual(t, a.ID, b.ID, "every fit gets its own run id")
}

func TestRecommendUsesGroupProfile(t *testing.T) {
	e := newTestEngine(t, 3)
	props := groupedProperties()
	snap, err := e.Fit(props)
	require.NoError(t, err)

	// g0-p3 sits above its group's medians on every feature
	rec, err := e.Recommend(props[3])
	require.NoError(t, err)

	assert.Equal(t, "g0-p3", rec.PropertyID)
	assert.Equal(t, snap.Labels()[3], rec.Group)
	assert.InDelta(t, 1030*0.95*1.05*1.03*1.02, rec.RecommendedPrice, 1e-9)
	assert.Len(t, rec.Tiers, 2, "margin 21.5 is below 40")
	assert.Len(t, rec.AppliedRules, 4)
	require.NotNil(t, rec.Reference.Furnished)
	assert.InDelta(t, 1200, *rec.Reference.Furnished, 1e-9)

	// g1-p0 sits below its medians; margin 45 earns a third tier
	rec, err = e.Recommend(props[4])
	require.NoError(t, err)
	assert.InDelta(t, 3030, rec.RecommendedPrice, 1e-9)
	assert.Empty(t, rec.AppliedRules)
	assert.Equal(t, []int{3484, 3333, 3181}, rec.Tiers)
}

func TestRecommendAllKeepsOrderAndTierCounts(t *testing.T) {
	e := newTestEngine(t, 3)
	props := groupedProperties()
	_, err := e.Fit(props)
	require.NoError(t, err)

	recs, err := e.RecommendAll(context.Background(), props)
	require.NoError(t, err)
	require.Len(t, recs, len(props))

	for i, rec := range recs {
		assert.Equal(t, props[i].ID, rec.PropertyID)
		want := 3
		if props[i].Features.GrossMargin < 40 {
			want = 2
		}
		assert.Len(t, rec.Tiers, want)
		for j := 1; j < len(rec.Tiers); j++ {
			assert.GreaterOrEqual(t, rec.Tiers[j-1], rec.Tiers[j])
		}
	}
}

func TestFitDegenerateFeature(t *testing.T) {
	props := groupedProperties()
	for i := range props {
		props[i].Features.MonthsOfStay = 6
	}

	e := newTestEngine(t, 3)
	_, err := e.Fit(props)

	var de *DegenerateFeatureError
	require.True(t, errors.As(err, &de), "expected DegenerateFeatureError, got %v", err)
	assert.Equal(t, "months_of_stay", de.Feature)

	_, err = e.Snapshot()
	var nf *NotFittedError
	assert.True(t, errors.As(err, &nf), "failed fit must not publish a snapshot")
}

func TestFitEmptyGroupKeepsPreviousSnapshot(t *testing.T) {
	e := newTestEngine(t, 3)
	first, err := e.Fit(groupedProperties())
	require.NoError(t, err)

	a := models.PropertyFeatures{TotalOpex: 500, CostPerRoom: 300, GrossMargin: 20, AvgRent: 1000, OccupancyRatio: 60, MonthsOfStay: 4}
	b := models.PropertyFeatures{TotalOpex: 900, CostPerRoom: 500, GrossMargin: 35, AvgRent: 2000, OccupancyRatio: 90, MonthsOfStay: 8}
	var dupes []models.Property
	for i := 0; i < 3; i++ {
		dupes = append(dupes, models.Property{ID: "a", Features: a}, models.Property{ID: "b", Features: b})
	}

	_, err = e.Fit(dupes)
	var eg *EmptyGroupError
	require.True(t, errors.As(err, &eg), "expected EmptyGroupError, got %v", err)

	current, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
}

func TestSnapshotExposesTrainingMatrix(t *testing.T) {
	e := newTestEngine(t, 3)
	props := groupedProperties()
	snap, err := e.Fit(props)
	require.NoError(t, err)

	scaled := snap.ScaledFeatures()
	require.Len(t, scaled, len(props))
	assert.Len(t, scaled[0], len(models.FeatureNames))
	assert.Len(t, snap.Labels(), len(props))
	assert.Len(t, snap.AnomalyFlags(), len(props))
	assert.Equal(t, "g0-p0", snap.PropertyIDs()[0])

	// mutating the copy leaves the snapshot alone
	scaled[0][0] = 999
	assert.NotEqual(t, 999.0, snap.ScaledFeatures()[0][0])
}

func TestAnomalyDetectionDisabled(t *testing.T) {
	cfg := testConfig(3)
	cfg.DetectAnomalies = false
	e, err := NewEngine(cfg, utils.Discard())
	require.NoError(t, err)

	snap, err := e.Fit(groupedProperties())
	require.NoError(t, err)
	assert.Nil(t, snap.AnomalyFlags())
	assert.Zero(t, snap.AnomalyCount())
}

func TestMissingProfileIsInvariantViolation(t *testing.T) {
	scaler := NewScaler(nil)
	scaler.state = &ScalerState{Mean: make([]float64, 6), Std: []float64{1, 1, 1, 1, 1, 1}}
	snap := &Snapshot{
		scaler: scaler,
		clusters: &ClusterModel{
			centroids: [][]float64{{0, 0, 0, 0, 0, 0}, {100, 100, 100, 100, 100, 100}},
			profiles:  map[int]GroupProfile{0: scenarioProfile},
		},
		rules: DefaultAdjustments,
		tiers: DefaultTierPolicy(),
	}

	_, err := snap.Recommend(models.Property{Features: models.PropertyFeatures{
		TotalOpex: 100, CostPerRoom: 100, GrossMargin: 100, AvgRent: 100, OccupancyRatio: 100, MonthsOfStay: 100,
	}})
	var ie *InternalInvariantError
	require.True(t, errors.As(err, &ie), "expected InternalInvariantError, got %v", err)
	assert.Equal(t, 1, ie.Group)
}

func TestRecommendRejectsNonFiniteFeatures(t *testing.T) {
	e := newTestEngine(t, 3)
	_, err := e.Fit(groupedProperties())
	require.NoError(t, err)

	nan := groupedProperties()[0]
	nan.Features.AvgRent = math.NaN()
	_, err = e.Recommend(nan)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, "avg_rent", ve.Field)
	assert.Equal(t, nan.ID, ve.PropertyID)

	inf := groupedProperties()[1]
	inf.Features.OccupancyRatio = math.Inf(1)
	_, err = e.RecommendAll(context.Background(), []models.Property{groupedProperties()[0], inf})
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, "occupancy_ratio", ve.Field)
}

func TestFitRejectsNonFiniteFeatures(t *testing.T) {
	e := newTestEngine(t, 3)
	first, err := e.Fit(groupedProperties())
	require.NoError(t, err)

	props := groupedProperties()
	props[2].Features.GrossMargin = math.Inf(-1)
	_, err = e.Fit(props)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, "gross_margin", ve.Field)

	live, err := e.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, first.ID, live.ID)
}

func TestSnapshotScenario(t *testing.T) {
	scaler := NewScaler(nil)
	scaler.state = &ScalerState{Mean: make([]float64, 6), Std: []float64{1, 1, 1, 1, 1, 1}}
	snap := &Snapshot{
		scaler: scaler,
		clusters: &ClusterModel{
			centroids: [][]float64{{0, 0, 0, 0, 0, 0}},
			profiles:  map[int]GroupProfile{0: scenarioProfile},
		},
		rules: DefaultAdjustments,
		tiers: DefaultTierPolicy(),
	}

	rec, err := snap.Recommend(models.Property{ID: "p1", Features: models.PropertyFeatures{
		TotalOpex: 1000, CostPerRoom: 500, GrossMargin: 35, AvgRent: 2000, OccupancyRatio: 80, MonthsOfStay: 6,
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Group)
	assert.InDelta(t, 1886.35, rec.RecommendedPrice, 0.01)
	assert.Equal(t, []int{2169, 2074}, rec.Tiers)
}

func TestConcurrentRecommendDuringRefit(t *testing.T) {
	e := newTestEngine(t, 3)
	props := groupedProperties()
	_, err := e.Fit(props)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range props {
				if _, err := e.Recommend(p); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		_, err := e.Fit(props)
		require.NoError(t, err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("recommend during refit: %v", err)
	}
}

func TestNewEngineValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clusters = 0
	_, err := NewEngine(cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Anomaly.Contamination = 0.9
	_, err = NewEngine(cfg, nil)
	assert.Error(t, err)

	cfg.DetectAnomalies = false
	_, err = NewEngine(cfg, nil)
	assert.NoError(t, err)
}
