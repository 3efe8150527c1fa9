// Package numeric defines the feature and accumulator representations used
// across the clustering engine, together with the squared-distance and
// centroid-division rules that go with each representation.
//
// Two policies exist:
//
//   - Float64: features and per-cluster sums are float64. Distance is the
//     plain sum of squared differences.
//   - Int16: features are narrow signed integers with a known symmetric
//     range. Per-term differences are widened to int64 before squaring, and
//     per-cluster sums accumulate in int64. The centroid update divides
//     integers, truncating toward zero; this is intrinsic to the policy,
//     not an error to be compensated elsewhere.
//
// Cluster counts are uint64 under both policies.
//
// Precondition for the Int16 policy: D * maxDiff^2 must fit in int64. With
// the default feature range (0..98) this holds for any realistic D and is
// therefore not checked at runtime.
package numeric

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Feature constrains the on-the-wire representation of a single feature.
type Feature interface {
	~float64 | ~int16
}

// Sum constrains the accumulator representation for per-cluster sums and
// squared distances.
type Sum interface {
	~float64 | ~int64
}

// Count is the per-cluster population type shared by both policies.
type Count = uint64

// Policy binds a feature representation to its accumulator arithmetic.
type Policy[F Feature, S Sum] interface {
	// Name identifies the policy ("float64" or "int16"). It doubles as the
	// kernel image suffix on the fabric.
	Name() string

	// Distance returns the squared L2 distance between two equal-length
	// feature vectors, accumulated in S.
	Distance(a, b []F) S

	// Mean divides an accumulated sum by a non-zero count, producing a
	// feature value. Integer policies truncate toward zero.
	Mean(sum S, count Count) F

	// MaxFeature is the largest feature value the policy's generators and
	// quantizers produce. Centroid seeding draws from [0, MaxFeature].
	MaxFeature() F
}

// Float64 is the wide-floating policy.
type Float64 struct{}

func (Float64) Name() string { return "float64" }

func (Float64) Distance(a, b []float64) float64 {
	var acc float64
	for i := range a {
		d := a[i] - b[i]
		acc += d * d
	}
	return acc
}

func (Float64) Mean(sum float64, count Count) float64 {
	return sum / float64(count)
}

func (Float64) MaxFeature() float64 { return float64(MaxFeatureValue) }

// Int16 is the quantized policy: int16 features, int64 accumulators.
type Int16 struct{}

func (Int16) Name() string { return "int16" }

func (Int16) Distance(a, b []int16) int64 {
	var acc int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		acc += d * d
	}
	return acc
}

func (Int16) Mean(sum int64, count Count) int16 {
	// Integer mean, truncated toward zero.
	return int16(sum / int64(count))
}

func (Int16) MaxFeature() int16 { return int16(MaxFeatureValue) }

// MaxFeatureValue is the upper bound (exclusive of +1) of the sample data
// range: generated features lie in [0, MaxFeatureValue].
const MaxFeatureValue = 98

// DrawCentroids returns a k*dim centroid table drawn uniformly from the
// policy's feature range with a deterministic seeded generator. The same
// seed always yields the same table, so a serial reference run and a
// distributed run can start from identical centroids.
func DrawCentroids[F Feature, S Sum](p Policy[F, S], k, dim int, seed int64) []F {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	span := int64(p.MaxFeature()) + 1
	centroids := make([]F, k*dim)
	for i := range centroids {
		centroids[i] = F(rng.Int63n(span))
	}
	return centroids
}

// Quantize converts wide-floating features to the narrow representation,
// rounding to the nearest integer (ties away from zero, as math.Round).
func Quantize(src []float64) []int16 {
	dst := make([]int16, len(src))
	for i, v := range src {
		dst[i] = int16(math.Round(v))
	}
	return dst
}

// Shift returns the Frobenius norm of the elementwise difference between
// two equal-length centroid tables, evaluated in float64 regardless of the
// feature representation. It is the convergence signal of the host loop.
func Shift[F Feature](prev, next []F) float64 {
	a := make([]float64, len(prev))
	b := make([]float64, len(next))
	for i := range prev {
		a[i] = float64(prev[i])
		b[i] = float64(next[i])
	}
	return floats.Distance(a, b, 2)
}

// Dequantize converts narrow features back to wide-floating form.
func Dequantize(src []int16) []float64 {
	dst := make([]float64, len(src))
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}
