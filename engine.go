package pimeans

import (
	"context"
	"slices"
	"time"

	"github.com/hupe1980/pimeans/fabric"
	"github.com/hupe1980/pimeans/internal/wire"
	"github.com/hupe1980/pimeans/kernel"
	"github.com/hupe1980/pimeans/numeric"
	"github.com/hupe1980/pimeans/partition"
)

// Engine drives the distributed clustering loop: it owns the host side of
// the transfer protocol and the convergence state, and holds no partial
// results of its own - only what the units report each iteration.
//
// An Engine is reusable: every Run allocates its own unit set and releases
// it on every exit path.
type Engine[F numeric.Feature, S numeric.Sum] struct {
	policy     numeric.Policy[F, S]
	units      int
	workers    int
	burstBytes int
	threshold  float64
	maxIter    int
	fixedIter  int
	seed       int64
	initial    []F
	fab        fabric.Fabric
	limits     Limits
	logger     *Logger
}

// Result is the outcome of a completed run.
type Result[F numeric.Feature] struct {
	Centroids  []F
	Iterations int
	Shift      float64 // shift of the final iteration
	Timing     Timing
}

// Timing breaks a run down into its transfer-protocol phases.
type Timing struct {
	Setup  time.Duration // allocation, load, point distribution
	Launch time.Duration // synchronous kernel execution, all iterations
	Read   time.Duration // partial-result pulls, all iterations
}

// runState names the phases of the host loop.
type runState int

const (
	stateInit runState = iota
	stateCentroidPush
	stateLaunch
	statePull
	stateUpdate
	stateConverged
)

func (s runState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateCentroidPush:
		return "centroid_push"
	case stateLaunch:
		return "launch"
	case statePull:
		return "pull"
	case stateUpdate:
		return "update"
	case stateConverged:
		return "converged"
	default:
		return "unknown"
	}
}

// runBuffers is the explicit per-run mutable state threaded through the
// state machine. Transient aggregates are zeroed at the start of the state
// that fills them rather than carried over.
type runBuffers[F numeric.Feature, S numeric.Sum] struct {
	set    fabric.Set
	blocks []partition.Block
	lay    layout

	centroids []F
	prev      []F

	globalSums   []S
	globalCounts []numeric.Count

	unitSums   [][]S
	unitCounts [][]numeric.Count

	iter   int
	shift  float64
	timing Timing
}

// Run clusters points (flattened n*dim) into k clusters and returns the
// final centroid table with the iteration count. Any failure is fatal:
// the run aborts on the first error with no partial result.
func (e *Engine[F, S]) Run(ctx context.Context, points []F, dim, k int) (*Result[F], error) {
	blocks, lay, err := e.validate(points, dim, k)
	if err != nil {
		return nil, err
	}

	r := &runBuffers[F, S]{
		blocks:       blocks,
		lay:          lay,
		centroids:    make([]F, k*dim),
		prev:         make([]F, k*dim),
		globalSums:   make([]S, k*dim),
		globalCounts: make([]numeric.Count, k),
		unitSums:     make([][]S, e.units),
		unitCounts:   make([][]numeric.Count, e.units),
	}
	for i := 0; i < e.units; i++ {
		r.unitSums[i] = make([]S, k*dim)
		r.unitCounts[i] = make([]numeric.Count, k)
	}

	logger := e.logger.WithRun(len(points)/dim, dim, k, e.units)

	state := stateInit
	for state != stateConverged {
		var next runState
		var err error

		switch state {
		case stateInit:
			start := time.Now()
			err = e.init(ctx, r, points, dim, k)
			r.timing.Setup = time.Since(start)
			next = stateCentroidPush
		case stateCentroidPush:
			err = e.pushCentroids(ctx, r)
			next = stateLaunch
		case stateLaunch:
			start := time.Now()
			err = e.launch(ctx, r)
			r.timing.Launch += time.Since(start)
			next = statePull
		case statePull:
			start := time.Now()
			err = e.pull(ctx, r)
			r.timing.Read += time.Since(start)
			next = stateUpdate
		case stateUpdate:
			done := e.update(r)
			logger.Debug("iteration complete", "iteration", r.iter, "shift", r.shift)
			if done {
				next = stateConverged
			} else {
				next = stateCentroidPush
			}
		}

		if err != nil {
			if r.set != nil {
				r.set.Close()
			}
			logger.Error("run aborted", "state", state.String(), "error", err)
			return nil, err
		}
		state = next
	}

	r.set.Close()
	logger.Info("run converged", "iterations", r.iter, "shift", r.shift)

	return &Result[F]{
		Centroids:  slices.Clone(r.centroids),
		Iterations: r.iter,
		Shift:      r.shift,
		Timing:     r.timing,
	}, nil
}

// validate checks the run shape against the configured capacity limits.
// Everything here fails before a single byte is transferred.
func (e *Engine[F, S]) validate(points []F, dim, k int) ([]partition.Block, layout, error) {
	var lay layout

	if dim < 1 {
		return nil, lay, configErrorf("feature count must be >= 1, got %d", dim)
	}
	if k < 1 {
		return nil, lay, configErrorf("cluster count must be >= 1, got %d", k)
	}
	if len(points)%dim != 0 {
		return nil, lay, configErrorf("point data length %d is not a multiple of dim %d", len(points), dim)
	}
	if e.initial != nil && len(e.initial) != k*dim {
		return nil, lay, configErrorf("initial centroid table has %d values, want %d", len(e.initial), k*dim)
	}

	lay = newLayout[F, S](dim, k)
	if lay.pointBytes() > e.burstBytes {
		return nil, lay, configErrorf("burst capacity of %d bytes cannot hold one %d-byte point", e.burstBytes, lay.pointBytes())
	}

	n := len(points) / dim
	blocks, err := partition.Split(n, e.units)
	if err != nil {
		return nil, lay, &ConfigError{Reason: "invalid partition", cause: err}
	}

	if dim > e.limits.MaxFeatures {
		return nil, lay, &CapacityError{Resource: "features", Need: dim, Limit: e.limits.MaxFeatures}
	}
	if k > e.limits.MaxClusters {
		return nil, lay, &CapacityError{Resource: "clusters", Need: k, Limit: e.limits.MaxClusters}
	}
	if maxCount := partition.MaxCount(blocks); maxCount > e.limits.MaxPointsPerUnit {
		return nil, lay, &CapacityError{Resource: "points per unit", Need: maxCount, Limit: e.limits.MaxPointsPerUnit}
	}
	if need := lay.accumulatorBytes(); need > e.limits.ScratchBytes {
		return nil, lay, &CapacityError{Resource: "worker scratch", Need: need, Limit: e.limits.ScratchBytes}
	}

	return blocks, lay, nil
}

// init allocates the unit set, loads the kernel image, pushes each unit's
// point slice and argument block once, and seeds the centroid table.
func (e *Engine[F, S]) init(ctx context.Context, r *runBuffers[F, S], points []F, dim, k int) error {
	set, err := e.fab.Allocate(e.units)
	if err != nil {
		return &LaunchError{Iteration: -1, cause: err}
	}
	r.set = set

	maxCount := partition.MaxCount(r.blocks)
	img := kernel.NewImage(e.policy, kernel.Config{
		Workers:    e.workers,
		BurstBytes: e.burstBytes,
	}, kernel.Shape{
		MaxPointsPerUnit: maxCount,
		Dim:              dim,
		Clusters:         k,
	})
	if err := set.Load(img); err != nil {
		return translateLoadError(err, e.units, r.lay.perUnitBulkBytes(maxCount))
	}

	// Per-unit argument blocks, one grouped exchange.
	args := make([][]byte, e.units)
	for i, b := range r.blocks {
		count, err := wire.IntToUint32(b.Count)
		if err != nil {
			return &ConfigError{Reason: "point count out of range", cause: err}
		}
		args[i] = kernel.Args{Count: count, Dim: uint32(dim), Clusters: uint32(k)}.Encode()
		if err := set.PrepareTransfer(i, args[i]); err != nil {
			return e.transferErr(kernel.SymArgs, fabric.ToUnit, err)
		}
	}
	if err := set.PushTransfer(ctx, fabric.ToUnit, kernel.SymArgs, 0, kernel.ArgsBytes); err != nil {
		return e.transferErr(kernel.SymArgs, fabric.ToUnit, err)
	}

	// Point slices: one exchange per unit, sizes differ by up to one point.
	for i, b := range r.blocks {
		slice := points[b.Offset*dim : (b.Offset+b.Count)*dim]
		buf := wire.Bytes(slice)
		if err := set.PrepareTransfer(i, buf); err != nil {
			return e.transferErr(kernel.SymPoints, fabric.ToUnit, err)
		}
		if err := set.PushTransfer(ctx, fabric.ToUnit, kernel.SymPoints, 0, len(buf)); err != nil {
			return e.transferErr(kernel.SymPoints, fabric.ToUnit, err)
		}
	}

	e.seedCentroids(r.centroids)
	r.iter = 0
	r.shift = e.threshold + 1
	return nil
}

// seedCentroids fills the table either from the configured explicit
// centroids or from a deterministic seeded uniform draw over the policy's
// feature range.
func (e *Engine[F, S]) seedCentroids(centroids []F) {
	if e.initial != nil {
		copy(centroids, e.initial)
		return
	}
	copy(centroids, numeric.DrawCentroids(e.policy, 1, len(centroids), e.seed))
}

// pushCentroids broadcasts the current table identically to every unit.
func (e *Engine[F, S]) pushCentroids(ctx context.Context, r *runBuffers[F, S]) error {
	copy(r.prev, r.centroids)

	buf := wire.Bytes(r.centroids)
	for i := 0; i < e.units; i++ {
		if err := r.set.PrepareTransfer(i, buf); err != nil {
			return e.transferErr(kernel.SymCentroids, fabric.ToUnit, err)
		}
	}
	if err := r.set.PushTransfer(ctx, fabric.ToUnit, kernel.SymCentroids, 0, r.lay.centroidBytes()); err != nil {
		return e.transferErr(kernel.SymCentroids, fabric.ToUnit, err)
	}
	return nil
}

// launch runs the assignment kernel synchronously on every unit.
func (e *Engine[F, S]) launch(ctx context.Context, r *runBuffers[F, S]) error {
	if err := r.set.Launch(ctx); err != nil {
		return &LaunchError{Iteration: r.iter, cause: err}
	}
	return nil
}

// pull reads every unit's partial result back and folds it into the
// global aggregate, which is zeroed first. The fold is exact under the
// integer policy and fixed in unit order under the floating policy.
func (e *Engine[F, S]) pull(ctx context.Context, r *runBuffers[F, S]) error {
	for i := range r.globalSums {
		r.globalSums[i] = 0
	}
	for i := range r.globalCounts {
		r.globalCounts[i] = 0
	}

	for i := 0; i < e.units; i++ {
		if err := r.set.PrepareTransfer(i, wire.Bytes(r.unitSums[i])); err != nil {
			return e.transferErr(kernel.SymSums, fabric.FromUnit, err)
		}
	}
	if err := r.set.PushTransfer(ctx, fabric.FromUnit, kernel.SymSums, 0, r.lay.sumBytes()); err != nil {
		return e.transferErr(kernel.SymSums, fabric.FromUnit, err)
	}

	for i := 0; i < e.units; i++ {
		if err := r.set.PrepareTransfer(i, wire.Bytes(r.unitCounts[i])); err != nil {
			return e.transferErr(kernel.SymCounts, fabric.FromUnit, err)
		}
	}
	if err := r.set.PushTransfer(ctx, fabric.FromUnit, kernel.SymCounts, 0, r.lay.countBytes()); err != nil {
		return e.transferErr(kernel.SymCounts, fabric.FromUnit, err)
	}

	for i := 0; i < e.units; i++ {
		for j, s := range r.unitSums[i] {
			r.globalSums[j] += s
		}
		for j, c := range r.unitCounts[i] {
			r.globalCounts[j] += c
		}
	}
	return nil
}

// update recomputes the centroid table from the global aggregate, leaving
// empty clusters untouched, and evaluates the stopping rule.
func (e *Engine[F, S]) update(r *runBuffers[F, S]) (done bool) {
	dim := r.lay.dim
	for c := 0; c < r.lay.clusters; c++ {
		if r.globalCounts[c] == 0 {
			continue
		}
		for f := 0; f < dim; f++ {
			r.centroids[c*dim+f] = e.policy.Mean(r.globalSums[c*dim+f], r.globalCounts[c])
		}
	}

	r.shift = numeric.Shift(r.prev, r.centroids)
	r.iter++

	if e.fixedIter > 0 {
		return r.iter >= e.fixedIter
	}
	return r.iter >= e.maxIter || r.shift <= e.threshold
}

func (e *Engine[F, S]) transferErr(symbol string, dir fabric.Direction, err error) error {
	return &TransferError{Symbol: symbol, Direction: dir, cause: err}
}
