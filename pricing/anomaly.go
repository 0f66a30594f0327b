package pricing

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"rental-pricing/utils"
)

// AnomalyConfig controls the isolation forest.
type AnomalyConfig struct {
	Trees int
	// SampleSize is the number of rows drawn for each tree (capped at the batch size).
	SampleSize int
	// Contamination is the fraction of the batch expected to be outliers.
	Contamination float64
	Seed          int64
}

// DefaultAnomalyConfig returns the forest settings used by the engine.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          42,
	}
}

// IsolationForest scores rows by how quickly random axis-aligned splits
// isolate them. Short average path lengths mean atypical rows.
type IsolationForest struct {
	cfg        AnomalyConfig
	trees      []*isoNode
	sampleSize int
	threshold  float64
	fitted     bool
}

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int
}

// NewIsolationForest validates cfg and returns an unfitted forest.
func NewIsolationForest(cfg AnomalyConfig) (*IsolationForest, error) {
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, fmt.Errorf("pricing: contamination must be in (0, 0.5], got %v", cfg.Contamination)
	}
	if cfg.Trees < 1 {
		cfg.Trees = 100
	}
	if cfg.SampleSize < 2 {
		cfg.SampleSize = 256
	}
	return &IsolationForest{cfg: cfg}, nil
}

// Fit grows the forest on rows and sets the outlier threshold so that
// roughly Contamination of the training rows score above it.
func (f *IsolationForest) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("pricing: anomaly fit on empty batch")
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	psi := min(f.cfg.SampleSize, len(rows))
	limit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	trees := make([]*isoNode, f.cfg.Trees)
	for t := range trees {
		idx := rng.Perm(len(rows))[:psi]
		trees[t] = growTree(rows, idx, 0, limit, rng)
	}

	f.trees = trees
	f.sampleSize = psi
	scores := f.scoreAll(rows)
	f.threshold = utils.Quantile(scores, 1-f.cfg.Contamination)
	f.fitted = true
	return nil
}

// Scores returns the anomaly score of every row, in (0, 1]. Scores near 1
// are outliers; around 0.5 or below are ordinary.
func (f *IsolationForest) Scores(rows [][]float64) ([]float64, error) {
	if !f.fitted {
		return nil, &NotFittedError{Component: "anomaly detector"}
	}
	return f.scoreAll(rows), nil
}

// Predict flags rows whose score exceeds the fitted threshold.
func (f *IsolationForest) Predict(rows [][]float64) ([]bool, error) {
	scores, err := f.Scores(rows)
	if err != nil {
		return nil, err
	}
	flags := make([]bool, len(scores))
	for i, s := range scores {
		flags[i] = s > f.threshold
	}
	return flags, nil
}

func (f *IsolationForest) scoreAll(rows [][]float64) []float64 {
	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		norm = 1
	}
	scores := make([]float64, len(rows))
	for i, r := range rows {
		var total float64
		for _, t := range f.trees {
			total += pathLength(r, t, 0)
		}
		scores[i] = math.Pow(2, -(total/float64(len(f.trees)))/norm)
	}
	return scores
}

func growTree(rows [][]float64, idx []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	// only split on features that still vary within this node
	width := len(rows[idx[0]])
	var candidates []int
	lows := make([]float64, width)
	highs := make([]float64, width)
	for j := 0; j < width; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := rows[i][j]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		lows[j], highs[j] = lo, hi
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(idx)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	split := lows[feature] + rng.Float64()*(highs[feature]-lows[feature])

	var left, right []int
	for _, i := range idx {
		if rows[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    growTree(rows, left, depth+1, limit, rng),
		right:   growTree(rows, right, depth+1, limit, rng),
		size:    len(idx),
	}
}

func pathLength(row []float64, n *isoNode, depth int) float64 {
	if n.left == nil {
		return float64(depth) + averagePathLength(n.size)
	}
	if row[n.feature] < n.split {
		return pathLength(row, n.left, depth+1)
	}
	return pathLength(row, n.right, depth+1)
}

// averagePathLength is the expected path length of an unsuccessful search
// in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	const eulerGamma = 0.5772156649
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
