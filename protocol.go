package pimeans

import (
	"github.com/hupe1980/pimeans/internal/wire"
	"github.com/hupe1980/pimeans/kernel"
	"github.com/hupe1980/pimeans/numeric"
)

// Limits are the explicit capacity bounds a run is validated against
// before any transfer happens. They replace what a hardware target would
// express as fixed-size static buffers.
type Limits struct {
	MaxPointsPerUnit int
	MaxFeatures      int
	MaxClusters      int

	// ScratchBytes is the per-worker fast scratch capacity the target
	// fabric provides. The K*D accumulators of one worker must fit it.
	ScratchBytes int
}

// DefaultLimits mirror the capacity constants of a typical unit.
func DefaultLimits() Limits {
	return Limits{
		MaxPointsPerUnit: 65536,
		MaxFeatures:      16,
		MaxClusters:      16,
		ScratchBytes:     64 * 1024,
	}
}

// layout derives every transfer size of the fixed protocol from the run
// shape and the active numeric policy's widths.
type layout struct {
	featureWidth int // fw
	sumWidth     int // sw
	countWidth   int // cw
	dim          int
	clusters     int
}

func newLayout[F numeric.Feature, S numeric.Sum](dim, clusters int) layout {
	return layout{
		featureWidth: wire.Size[F](),
		sumWidth:     wire.Size[S](),
		countWidth:   wire.Size[numeric.Count](),
		dim:          dim,
		clusters:     clusters,
	}
}

// pointBytes is the wire size of one point.
func (l layout) pointBytes() int { return l.dim * l.featureWidth }

// pointSliceBytes is the once-at-setup host→unit slice size for count points.
func (l layout) pointSliceBytes(count int) int { return count * l.pointBytes() }

// centroidBytes is the per-iteration broadcast size, identical for all units.
func (l layout) centroidBytes() int { return l.clusters * l.dim * l.featureWidth }

// sumBytes is the per-iteration, per-unit partial sum readback size.
func (l layout) sumBytes() int { return l.clusters * l.dim * l.sumWidth }

// countBytes is the per-iteration, per-unit partial count readback size.
func (l layout) countBytes() int { return l.clusters * l.countWidth }

// perUnitBulkBytes is the total bulk memory one unit's regions occupy.
func (l layout) perUnitBulkBytes(maxPoints int) int {
	return kernel.ArgsBytes +
		l.pointSliceBytes(maxPoints) +
		l.centroidBytes() +
		l.sumBytes() +
		l.countBytes()
}

// accumulatorBytes is the scratch footprint of one worker's private
// accumulators.
func (l layout) accumulatorBytes() int {
	return l.clusters*l.dim*l.sumWidth + l.clusters*l.countWidth
}
