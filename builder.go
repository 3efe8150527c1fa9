// Package pimeans distributes iterative k-means clustering across the
// units of a compute fabric: balanced point partitioning, a per-unit
// assignment kernel with intra-unit workers, a fixed batched transfer
// protocol, and a host-side reduction and convergence loop.
//
// This file implements the policy-specific fluent builder APIs for
// creating engines. Builders are immutable - each method returns a new
// builder with the updated configuration.
package pimeans

import (
	"github.com/hupe1980/pimeans/fabric"
	"github.com/hupe1980/pimeans/kernel"
	"github.com/hupe1980/pimeans/numeric"
)

// DefaultThreshold is the convergence threshold on the centroid shift.
const DefaultThreshold = 0.0001

// DefaultMaxIterations caps the iteration loop.
const DefaultMaxIterations = 300

// Float64 creates an engine builder for the wide-floating numeric policy.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	eng, err := pimeans.Float64().
//	    Units(8).
//	    Workers(16).
//	    Threshold(1e-4).
//	    Build()
func Float64() Builder[float64, float64] {
	return newBuilder[float64, float64](numeric.Float64{})
}

// Int16 creates an engine builder for the quantized numeric policy:
// int16 features with int64 accumulators and integer centroid means.
func Int16() Builder[int16, int64] {
	return newBuilder[int16, int64](numeric.Int16{})
}

// Builder is an immutable fluent builder for creating engines.
// Each method returns a new builder with the updated configuration.
type Builder[F numeric.Feature, S numeric.Sum] struct {
	policy     numeric.Policy[F, S]
	units      int
	workers    int
	burstBytes int
	threshold  float64
	maxIter    int
	fixedIter  int
	randomSeed *int64
	initial    []F
	fab        fabric.Fabric
	limits     Limits
	logger     *Logger
}

func newBuilder[F numeric.Feature, S numeric.Sum](p numeric.Policy[F, S]) Builder[F, S] {
	return Builder[F, S]{
		policy:     p,
		units:      1,
		workers:    1,
		burstBytes: kernel.DefaultBurstBytes,
		threshold:  DefaultThreshold,
		maxIter:    DefaultMaxIterations,
		limits:     DefaultLimits(),
	}
}

// Policy returns the numeric policy the builder was created with.
func (b Builder[F, S]) Policy() numeric.Policy[F, S] {
	return b.policy
}

// Units sets the number of compute units the dataset is partitioned over.
// Default: 1.
func (b Builder[F, S]) Units(n int) Builder[F, S] {
	b.units = n
	return b
}

// Workers sets the number of concurrent workers inside each unit.
// Default: 1.
func (b Builder[F, S]) Workers(n int) Builder[F, S] {
	b.workers = n
	return b
}

// BurstBytes caps the scratch staging buffer used when a worker's
// sub-range does not fit fast scratch memory whole.
// Default: kernel.DefaultBurstBytes.
func (b Builder[F, S]) BurstBytes(n int) Builder[F, S] {
	b.burstBytes = n
	return b
}

// Threshold sets the convergence threshold on the centroid shift
// (Frobenius norm of the table change). Default: DefaultThreshold.
func (b Builder[F, S]) Threshold(t float64) Builder[F, S] {
	b.threshold = t
	return b
}

// MaxIterations bounds the iteration loop. Default: DefaultMaxIterations.
func (b Builder[F, S]) MaxIterations(n int) Builder[F, S] {
	b.maxIter = n
	return b
}

// FixedIterations switches the stopping rule to an exact iteration count,
// ignoring the shift threshold. Use this to drive the distributed loop
// with an iteration budget taken from a reference oracle run.
func (b Builder[F, S]) FixedIterations(n int) Builder[F, S] {
	b.fixedIter = n
	return b
}

// RandomSeed sets the seed for deterministic centroid seeding.
// If not set, seed 1 is used: runs are deterministic by default.
func (b Builder[F, S]) RandomSeed(seed int64) Builder[F, S] {
	b.randomSeed = &seed
	return b
}

// InitialCentroids supplies an explicit initial centroid table (flattened
// k*dim, matching the Run call's shape) instead of seeded random draws.
// The slice is not mutated.
func (b Builder[F, S]) InitialCentroids(c []F) Builder[F, S] {
	b.initial = c
	return b
}

// Fabric sets the compute fabric to run on. Default: an in-process
// simulated fabric with default capacities.
func (b Builder[F, S]) Fabric(f fabric.Fabric) Builder[F, S] {
	b.fab = f
	return b
}

// CapacityLimits overrides the per-unit capacity bounds validated at
// setup. Default: DefaultLimits.
func (b Builder[F, S]) CapacityLimits(l Limits) Builder[F, S] {
	b.limits = l
	return b
}

// Logger sets the logger. Default: NoopLogger.
func (b Builder[F, S]) Logger(l *Logger) Builder[F, S] {
	b.logger = l
	return b
}

// Build validates the configuration and creates the engine.
func (b Builder[F, S]) Build() (*Engine[F, S], error) {
	if b.units < 1 {
		return nil, configErrorf("unit count must be >= 1, got %d", b.units)
	}
	if b.workers < 1 {
		return nil, configErrorf("worker count must be >= 1, got %d", b.workers)
	}
	if b.burstBytes < 1 {
		return nil, configErrorf("burst capacity must be >= 1 byte, got %d", b.burstBytes)
	}
	if b.threshold < 0 {
		return nil, configErrorf("threshold must be >= 0, got %g", b.threshold)
	}
	if b.maxIter < 1 {
		return nil, configErrorf("max iterations must be >= 1, got %d", b.maxIter)
	}
	if b.fixedIter < 0 {
		return nil, configErrorf("fixed iteration count must be >= 0, got %d", b.fixedIter)
	}

	fab := b.fab
	if fab == nil {
		fab = fabric.NewSim(fabric.WithScratchBytes(b.limits.ScratchBytes))
	}
	logger := b.logger
	if logger == nil {
		logger = NoopLogger()
	}
	seed := int64(1)
	if b.randomSeed != nil {
		seed = *b.randomSeed
	}

	return &Engine[F, S]{
		policy:     b.policy,
		units:      b.units,
		workers:    b.workers,
		burstBytes: b.burstBytes,
		threshold:  b.threshold,
		maxIter:    b.maxIter,
		fixedIter:  b.fixedIter,
		seed:       seed,
		initial:    b.initial,
		fab:        fab,
		limits:     b.limits,
		logger:     logger,
	}, nil
}

// MustBuild is like Build but panics on configuration errors.
func (b Builder[F, S]) MustBuild() *Engine[F, S] {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
