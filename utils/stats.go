package utils

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the middle value of xs, the mean of the two middle values
// for even lengths. It is NaN for an empty slice. xs is not modified.
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Quantile returns the q-th quantile (0..1) of xs, interpolating linearly
// between closest ranks. It is NaN for an empty slice. xs is not modified.
func Quantile(xs []float64, q float64) float64 {
	n := len(xs)
	if n == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	q = math.Min(math.Max(q, 0), 1)
	// LinInterp puts q at rank q*n; rescale so q=0 and q=1 land on the
	// first and last observations.
	return stat.Quantile((float64(n-1)*q+1)/float64(n), stat.LinInterp, s, nil)
}

// SampleStd is the n-1 standard deviation. A single observation has no
// spread and yields 0.
func SampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
