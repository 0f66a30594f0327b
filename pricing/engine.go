package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rental-pricing/models"
	"rental-pricing/utils"
)

// Config holds every tunable of the pricing engine.
type Config struct {
	Clusters      int
	Seed          int64
	MaxIterations int
	// Workers bounds parallelism for centroid assignment and batch recommendation.
	Workers int

	DetectAnomalies bool
	Anomaly         AnomalyConfig

	Rules []Adjustment
	Tiers TierPolicy
}

// DefaultConfig returns five groups, seed 42, anomaly detection on at 10%
// contamination, and the default rule cascade and tier policy.
func DefaultConfig() Config {
	return Config{
		Clusters:        5,
		Seed:            42,
		MaxIterations:   300,
		Workers:         runtime.GOMAXPROCS(0),
		DetectAnomalies: true,
		Anomaly:         DefaultAnomalyConfig(),
		Rules:           DefaultAdjustments,
		Tiers:           DefaultTierPolicy(),
	}
}

// Engine fits the pricing model and serves recommendations from the most
// recently published Snapshot. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *utils.Logger

	fitMu   sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewEngine validates cfg and returns an unfitted Engine.
func NewEngine(cfg Config, logger *utils.Logger) (*Engine, error) {
	if cfg.Clusters < 1 {
		return nil, fmt.Errorf("pricing: clusters must be >= 1, got %d", cfg.Clusters)
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultAdjustments
	}
	if len(cfg.Tiers.Markups) == 0 || len(cfg.Tiers.LowMarginMarkups) == 0 {
		cfg.Tiers = DefaultTierPolicy()
	}
	if cfg.DetectAnomalies {
		if _, err := NewIsolationForest(cfg.Anomaly); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = utils.Discard()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Fit trains the scaler, the cluster model and, when enabled, the anomaly
// detector over props, then publishes the result as the current snapshot.
// A failed Fit publishes nothing and the previous snapshot stays live.
func (e *Engine) Fit(props []models.Property) (*Snapshot, error) {
	e.fitMu.Lock()
	defer e.fitMu.Unlock()

	start := time.Now()
	if len(props) == 0 {
		return nil, errors.New("pricing: fit on empty batch")
	}

	raw := make([]models.PropertyFeatures, len(props))
	vectors := make([][]float64, len(props))
	ids := make([]string, len(props))
	for i, p := range props {
		if err := checkFinite(p); err != nil {
			return nil, err
		}
		raw[i] = p.Features
		vectors[i] = p.Features.Vector()
		ids[i] = p.ID
	}

	scaler := NewScaler(models.FeatureNames)
	if err := scaler.Fit(vectors); err != nil {
		return nil, err
	}
	scaled, err := scaler.TransformBatch(vectors)
	if err != nil {
		return nil, err
	}

	clusters, err := NewClusterModel(ClusterConfig{
		K:             e.cfg.Clusters,
		Seed:          e.cfg.Seed,
		MaxIterations: e.cfg.MaxIterations,
		Workers:       e.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}
	if err := clusters.Fit(scaled, raw); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:       uuid.New(),
		FittedAt: time.Now(),
		ids:      ids,
		scaler:   scaler,
		clusters: clusters,
		scaled:   scaled,
		labels:   clusters.Labels(),
		rules:    e.cfg.Rules,
		tiers:    e.cfg.Tiers,
	}

	if e.cfg.DetectAnomalies {
		detector, err := NewIsolationForest(e.cfg.Anomaly)
		if err != nil {
			return nil, err
		}
		if err := detector.Fit(scaled); err != nil {
			return nil, err
		}
		flags, err := detector.Predict(scaled)
		if err != nil {
			return nil, err
		}
		snap.detector = detector
		snap.anomalies = flags
	}

	e.current.Store(snap)

	iterations, converged := clusters.Iterations()
	e.logger.Info("[pricing] Fitted %d properties into %d groups in %d iterations (converged=%v, %v), run %s",
		len(props), e.cfg.Clusters, iterations, converged, time.Since(start).Round(time.Millisecond), snap.ID)
	for g := 0; g < e.cfg.Clusters; g++ {
		p, _ := clusters.Profile(g)
		e.logger.Debug("[pricing] Group %d: size=%d median_price=%.2f price_std=%.2f",
			g, p.Size, p.MedianPrice, p.PriceStd)
	}
	if e.cfg.DetectAnomalies {
		e.logger.Info("[pricing] Flagged %d anomalous properties", snap.AnomalyCount())
	}
	return snap, nil
}

// Snapshot returns the currently published fitted state.
func (e *Engine) Snapshot() (*Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, &NotFittedError{Component: "engine"}
	}
	return snap, nil
}

// Recommend prices one property against the current snapshot.
func (e *Engine) Recommend(p models.Property) (models.Recommendation, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return models.Recommendation{}, err
	}
	rec, err := snap.Recommend(p)
	if err != nil {
		return models.Recommendation{}, err
	}
	e.logger.Debug("[pricing] %s → group %d, price %.2f, rules %v, tiers %v",
		p.ID, rec.Group, rec.RecommendedPrice, rec.AppliedRules, rec.Tiers)
	return rec, nil
}

// RecommendAll prices every property against a single snapshot, in
// parallel, preserving input order. The first error cancels the batch.
func (e *Engine) RecommendAll(ctx context.Context, props []models.Property) ([]models.Recommendation, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}

	out := make([]models.Recommendation, len(props))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, p := range props {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := snap.Recommend(p)
			if err != nil {
				return fmt.Errorf("recommend %s: %w", p.ID, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot is the immutable result of one Fit.
type Snapshot struct {
	ID       uuid.UUID
	FittedAt time.Time

	ids       []string
	scaler    *Scaler
	clusters  *ClusterModel
	detector  *IsolationForest
	scaled    [][]float64
	labels    []int
	anomalies []bool
	rules     []Adjustment
	tiers     TierPolicy
}

// Recommend scales p, resolves its nearest group, applies the adjustment
// cascade to the group's median price and derives the pricing tiers.
func (s *Snapshot) Recommend(p models.Property) (models.Recommendation, error) {
	if err := checkFinite(p); err != nil {
		return models.Recommendation{}, err
	}
	scaled, err := s.scaler.Transform(p.Features.Vector())
	if err != nil {
		return models.Recommendation{}, err
	}
	group, err := s.clusters.Predict(scaled)
	if err != nil {
		return models.Recommendation{}, err
	}
	profile, ok := s.clusters.Profile(group)
	if !ok {
		return models.Recommendation{}, &InternalInvariantError{Group: group}
	}

	price, fired := ApplyAdjustments(p.Features, profile, s.rules)

	rec := models.Recommendation{
		PropertyID:       p.ID,
		Group:            group,
		RecommendedPrice: price,
		Tiers:            s.tiers.Tiers(price, p.Features.GrossMargin),
		AppliedRules:     fired,
		Reference:        p.Reference,
	}
	if s.detector != nil {
		flags, err := s.detector.Predict([][]float64{scaled})
		if err != nil {
			return models.Recommendation{}, err
		}
		rec.Anomaly = flags[0]
	}
	return rec, nil
}

// checkFinite rejects properties that bypassed the Validator with a NaN or
// infinite feature; such a row would land in an arbitrary group.
func checkFinite(p models.Property) error {
	for j, v := range p.Features.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{PropertyID: p.ID, Field: models.FeatureNames[j], Reason: "must be a finite number"}
		}
	}
	return nil
}

// ScaledFeatures returns a copy of the standardized training matrix.
func (s *Snapshot) ScaledFeatures() [][]float64 {
	out := make([][]float64, len(s.scaled))
	for i, row := range s.scaled {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Labels returns the group id of every training row.
func (s *Snapshot) Labels() []int {
	return append([]int(nil), s.labels...)
}

// PropertyIDs returns the training property ids in row order.
func (s *Snapshot) PropertyIDs() []string {
	return append([]string(nil), s.ids...)
}

// AnomalyFlags returns the outlier flag of every training row, or nil when
// anomaly detection was disabled.
func (s *Snapshot) AnomalyFlags() []bool {
	if s.anomalies == nil {
		return nil
	}
	return append([]bool(nil), s.anomalies...)
}

// AnomalyCount returns the number of flagged training rows.
func (s *Snapshot) AnomalyCount() int {
	n := 0
	for _, a := range s.anomalies {
		if a {
			n++
		}
	}
	return n
}

// Profiles returns the statistics of every group.
func (s *Snapshot) Profiles() map[int]GroupProfile {
	return s.clusters.Profiles()
}

// ScalerState returns the fitted per-feature mean and std.
func (s *Snapshot) ScalerState() ScalerState {
	st, _ := s.scaler.State()
	return st
}
