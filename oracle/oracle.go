// Package oracle runs the reference serial k-means over the full dataset
// in a single process. It applies exactly the same assignment, tie-break
// and empty-cluster rules as the distributed engine, so its output bounds
// and validates a fabric run: either as an expected result within the
// numeric policy's tolerance, or as an iteration count for a fixed-length
// distributed run.
package oracle

import (
	"context"
	"fmt"
	"slices"

	"github.com/hupe1980/pimeans/numeric"
)

// Result is the outcome of a serial run.
type Result[F numeric.Feature] struct {
	Centroids  []F
	Iterations int
	Shift      float64 // shift of the final iteration
}

// KMeans clusters points (flattened n*dim) around the given initial
// centroids (flattened k*dim) and returns the converged table. The initial
// centroids are not mutated. The loop stops when the centroid shift drops
// to threshold or after maxIter iterations, whichever comes first.
func KMeans[F numeric.Feature, S numeric.Sum](
	ctx context.Context,
	p numeric.Policy[F, S],
	points []F,
	dim int,
	initial []F,
	threshold float64,
	maxIter int,
) (Result[F], error) {
	if dim < 1 {
		return Result[F]{}, fmt.Errorf("oracle: dim must be >= 1, got %d", dim)
	}
	if len(initial) == 0 || len(initial)%dim != 0 {
		return Result[F]{}, fmt.Errorf("oracle: centroid table length %d is not a positive multiple of dim %d", len(initial), dim)
	}
	if len(points)%dim != 0 {
		return Result[F]{}, fmt.Errorf("oracle: point data length %d is not a multiple of dim %d", len(points), dim)
	}

	k := len(initial) / dim
	n := len(points) / dim

	centroids := slices.Clone(initial)
	prev := make([]F, k*dim)
	sums := make([]S, k*dim)
	counts := make([]numeric.Count, k)

	iter := 0
	shift := threshold + 1

	for iter < maxIter && shift > threshold {
		if err := ctx.Err(); err != nil {
			return Result[F]{}, err
		}

		copy(prev, centroids)
		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}

		// Assignment: strict less-than, the first minimum wins.
		for i := 0; i < n; i++ {
			point := points[i*dim : (i+1)*dim]
			best := 0
			bestDist := p.Distance(point, centroids[:dim])
			for c := 1; c < k; c++ {
				d := p.Distance(point, centroids[c*dim:(c+1)*dim])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			counts[best]++
			row := sums[best*dim : (best+1)*dim]
			for f := 0; f < dim; f++ {
				row[f] += S(point[f])
			}
		}

		// Update with empty-cluster freeze: a cluster that attracted no
		// points keeps its previous centroid, exactly.
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for f := 0; f < dim; f++ {
				centroids[c*dim+f] = p.Mean(sums[c*dim+f], counts[c])
			}
		}

		shift = numeric.Shift(prev, centroids)
		iter++
	}

	return Result[F]{Centroids: centroids, Iterations: iter, Shift: shift}, nil
}
