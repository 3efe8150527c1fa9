// Package dataset generates and loads the point data consumed by the
// clustering engine. Generated features are uniform integers over the
// sample range [0, numeric.MaxFeatureValue], which keeps both numeric
// policies exact on the same data and makes float results reproducible
// across any partitioning.
package dataset

import (
	"math/rand"

	"github.com/hupe1980/pimeans/numeric"
)

// Uniform returns n points of dim features drawn uniformly from the
// integer sample range. The same seed always produces the same data.
func Uniform(n, dim int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	points := make([]float64, n*dim)
	for i := range points {
		points[i] = float64(rng.Intn(numeric.MaxFeatureValue + 1))
	}
	return points
}

// Blobs returns n points grouped around k well-separated centers, for
// convergence testing. Centers sit on a diagonal lattice spread across
// the sample range; points scatter around their center by at most
// spread in every dimension. Deterministic for a given seed.
func Blobs(n, dim, k int, spread float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec

	centers := make([]float64, k*dim)
	for c := 0; c < k; c++ {
		base := float64(c) * float64(numeric.MaxFeatureValue) / float64(k)
		for f := 0; f < dim; f++ {
			centers[c*dim+f] = base
		}
	}

	points := make([]float64, n*dim)
	for i := 0; i < n; i++ {
		c := i % k
		for f := 0; f < dim; f++ {
			noise := (rng.Float64()*2 - 1) * spread
			points[i*dim+f] = centers[c*dim+f] + noise
		}
	}
	return points
}
