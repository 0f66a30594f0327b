package pricing

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"rental-pricing/models"
	"rental-pricing/utils"
)

// GroupProfile holds the statistics of one group, computed from the raw
// (unscaled) features of its members.
type GroupProfile struct {
	Size              int
	MedianPrice       float64
	PriceStd          float64
	OpexMedian        float64
	CostPerRoomMedian float64
	MarginMedian      float64
	RentMedian        float64
}

// ClusterConfig controls k-means partitioning.
type ClusterConfig struct {
	K             int
	Seed          int64
	MaxIterations int
	// Workers bounds the goroutines used for the nearest-centroid search
	// inside one iteration. Zero means GOMAXPROCS.
	Workers int
}

// ClusterModel partitions scaled feature vectors into K groups.
type ClusterModel struct {
	cfg ClusterConfig

	centroids  [][]float64
	labels     []int
	profiles   map[int]GroupProfile
	iterations int
	converged  bool
}

// NewClusterModel validates cfg and returns an unfitted model.
func NewClusterModel(cfg ClusterConfig) (*ClusterModel, error) {
	if cfg.K < 1 {
		return nil, fmt.Errorf("pricing: cluster count must be >= 1, got %d", cfg.K)
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 300
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &ClusterModel{cfg: cfg}, nil
}

// Fit assigns every row of scaled to a group and profiles each group from
// the matching raw features. raw[i] must describe the same property as
// scaled[i]. On error the model keeps its previous state.
func (m *ClusterModel) Fit(scaled [][]float64, raw []models.PropertyFeatures) error {
	n := len(scaled)
	if n == 0 {
		return errors.New("pricing: cluster fit on empty batch")
	}
	if len(raw) != n {
		return fmt.Errorf("pricing: cluster fit: %d scaled rows but %d raw rows", n, len(raw))
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	centroids := seedCentroids(scaled, m.cfg.K, rng)

	var labels []int
	iterations := 0
	converged := false
	for iterations < m.cfg.MaxIterations {
		iterations++
		next, err := m.assign(scaled, centroids)
		if err != nil {
			return err
		}
		if labels != nil && sameLabels(labels, next) {
			converged = true
			break
		}
		labels = next
		centroids = updateCentroids(scaled, labels, centroids)
	}

	members := make([][]models.PropertyFeatures, m.cfg.K)
	for i, g := range labels {
		members[g] = append(members[g], raw[i])
	}
	profiles := make(map[int]GroupProfile, m.cfg.K)
	for g, rows := range members {
		if len(rows) == 0 {
			return &EmptyGroupError{Group: g}
		}
		profiles[g] = profileOf(rows)
	}

	m.centroids = centroids
	m.labels = labels
	m.profiles = profiles
	m.iterations = iterations
	m.converged = converged
	return nil
}

// Predict returns the id of the centroid nearest to row.
func (m *ClusterModel) Predict(row []float64) (int, error) {
	if m.centroids == nil {
		return 0, &NotFittedError{Component: "cluster model"}
	}
	return nearest(row, m.centroids)
}

// Profile returns the statistics of group g.
func (m *ClusterModel) Profile(g int) (GroupProfile, bool) {
	p, ok := m.profiles[g]
	return p, ok
}

// Profiles returns a copy of every group profile keyed by group id.
func (m *ClusterModel) Profiles() map[int]GroupProfile {
	out := make(map[int]GroupProfile, len(m.profiles))
	for g, p := range m.profiles {
		out[g] = p
	}
	return out
}

// Labels returns the group id of every fitted row.
func (m *ClusterModel) Labels() []int {
	return append([]int(nil), m.labels...)
}

// Centroids returns a copy of the fitted centroids in scaled space.
func (m *ClusterModel) Centroids() [][]float64 {
	out := make([][]float64, len(m.centroids))
	for i, c := range m.centroids {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// Iterations reports how many assignment passes the last Fit ran and
// whether they stabilised before the cap.
func (m *ClusterModel) Iterations() (int, bool) {
	return m.iterations, m.converged
}

// assign computes the nearest centroid of every row. Rows are split into
// contiguous chunks, one goroutine each; centroids are only read.
func (m *ClusterModel) assign(rows [][]float64, centroids [][]float64) ([]int, error) {
	labels := make([]int, len(rows))
	chunk := (len(rows) + m.cfg.Workers - 1) / m.cfg.Workers

	var g errgroup.Group
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				id, err := nearest(rows[i], centroids)
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				labels[i] = id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pricing: assign: %w", err)
	}
	return labels, nil
}

// seedCentroids picks k initial centroids with k-means++: the first
// uniformly, each next one with probability proportional to its squared
// distance from the closest centroid chosen so far.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), rows[rng.Intn(n)]...))

	dist := make([]float64, n)
	for i, r := range rows {
		dist[i] = squaredDistance(r, centroids[0])
	}

	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}

		idx := n - 1
		if total == 0 {
			idx = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			var acc float64
			for i, d := range dist {
				acc += d
				if target < acc {
					idx = i
					break
				}
			}
		}

		c := append([]float64(nil), rows[idx]...)
		centroids = append(centroids, c)
		for i, r := range rows {
			if d := squaredDistance(r, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// updateCentroids moves every centroid to the mean of its members. A
// centroid without members stays where it was.
func updateCentroids(rows [][]float64, labels []int, prev [][]float64) [][]float64 {
	width := len(prev[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for g := range sums {
		sums[g] = make([]float64, width)
	}
	for i, g := range labels {
		counts[g]++
		for j, x := range rows[i] {
			sums[g][j] += x
		}
	}

	next := make([][]float64, len(prev))
	for g := range prev {
		if counts[g] == 0 {
			next[g] = append([]float64(nil), prev[g]...)
			continue
		}
		for j := range sums[g] {
			sums[g][j] /= float64(counts[g])
		}
		next[g] = sums[g]
	}
	return next
}

// nearest returns the index of the closest centroid. Ties go to the lower index.
func nearest(row []float64, centroids [][]float64) (int, error) {
	if len(row) != len(centroids[0]) {
		return 0, fmt.Errorf("got %d features, want %d", len(row), len(centroids[0]))
	}
	best, bestDist := 0, math.Inf(1)
	for g, c := range centroids {
		if d := squaredDistance(row, c); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best, nil
}

func sameLabels(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func profileOf(rows []models.PropertyFeatures) GroupProfile {
	rent := make([]float64, len(rows))
	opex := make([]float64, len(rows))
	cpr := make([]float64, len(rows))
	margin := make([]float64, len(rows))
	for i, r := range rows {
		rent[i] = r.AvgRent
		opex[i] = r.TotalOpex
		cpr[i] = r.CostPerRoom
		margin[i] = r.GrossMargin
	}
	rentMedian := utils.Median(rent)
	return GroupProfile{
		Size:              len(rows),
		MedianPrice:       rentMedian,
		PriceStd:          utils.SampleStd(rent),
		OpexMedian:        utils.Median(opex),
		CostPerRoomMedian: utils.Median(cpr),
		MarginMedian:      utils.Median(margin),
		RentMedian:        rentMedian,
	}
}

func squaredDistance(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
