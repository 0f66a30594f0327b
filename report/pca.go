package report

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Projection is the result of a principal component analysis.
type Projection struct {
	// Points holds every input row projected onto the components.
	Points [][]float64
	// Components are unit-length principal axes, strongest first.
	Components [][]float64
	// Variance is the variance explained by each component.
	Variance []float64
}

// PCA projects rows onto their k strongest principal components. Rows are
// centered first. Each component is oriented so that its largest-magnitude
// entry is positive, which makes the signs stable across runs.
func PCA(rows [][]float64, k int) (*Projection, error) {
	n := len(rows)
	if n < 2 {
		return nil, errors.New("report: pca needs at least 2 rows")
	}
	d := len(rows[0])
	if maxK := min(n, d); k < 1 || k > maxK {
		return nil, fmt.Errorf("report: pca: k must be in [1, %d], got %d", maxK, k)
	}

	data := mat.NewDense(n, d, nil)
	for i, r := range rows {
		if len(r) != d {
			return nil, fmt.Errorf("report: pca: row %d has %d features, want %d", i, len(r), d)
		}
		data.SetRow(i, r)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return nil, errors.New("report: pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	proj := &Projection{
		Components: make([][]float64, k),
		Variance:   append([]float64(nil), vars[:k]...),
	}
	for c := 0; c < k; c++ {
		proj.Components[c] = orient(mat.Col(nil, c, &vecs))
	}

	means := make([]float64, d)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	proj.Points = make([][]float64, n)
	centered := make([]float64, d)
	for i, r := range rows {
		floats.SubTo(centered, r, means)
		p := make([]float64, k)
		for c, v := range proj.Components {
			p[c] = floats.Dot(centered, v)
		}
		proj.Points[i] = p
	}
	return proj, nil
}

func orient(v []float64) []float64 {
	best := 0
	for j := range v {
		if math.Abs(v[j]) > math.Abs(v[best]) {
			best = j
		}
	}
	if v[best] < 0 {
		floats.Scale(-1, v)
	}
	return v
}
