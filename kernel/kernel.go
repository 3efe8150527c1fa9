// Package kernel implements the local assignment step of distributed
// k-means as a loadable fabric image.
//
// One configurable kernel covers every execution variant: the worker count
// sets the intra-unit parallelism, the burst size bounds how many points
// are staged in fast scratch memory per bulk read, and the numeric policy
// fixes the feature and accumulator arithmetic. Single-worker, multi-worker
// and batched runs are the same code path with different parameters.
package kernel

import (
	"context"
	"fmt"

	"github.com/hupe1980/pimeans/fabric"
	"github.com/hupe1980/pimeans/internal/wire"
	"github.com/hupe1980/pimeans/numeric"
)

// Bulk-memory symbol names shared between the kernel image and the host
// transfer protocol.
const (
	SymArgs      = "unit_args"
	SymPoints    = "t_points"
	SymCentroids = "c_centroids"
	SymSums      = "m_sums"
	SymCounts    = "m_counts"
)

// DefaultBurstBytes is the scratch staging buffer size used when a
// worker's sub-range does not fit scratch memory whole.
const DefaultBurstBytes = 256

// ArgsBytes is the encoded size of Args.
const ArgsBytes = 16

// Args is the small per-unit argument block pushed once at setup.
type Args struct {
	Count    uint32 // points assigned to this unit
	Dim      uint32
	Clusters uint32
}

// Encode serializes the args into a fresh ArgsBytes buffer.
func (a Args) Encode() []byte {
	buf := make([]byte, ArgsBytes)
	v := wire.View[uint32](buf)
	v[0], v[1], v[2] = a.Count, a.Dim, a.Clusters
	return buf
}

// DecodeArgs reads an argument block back out of its wire form.
func DecodeArgs(buf []byte) (Args, error) {
	if len(buf) != ArgsBytes {
		return Args{}, fmt.Errorf("kernel: argument block must be %d bytes, got %d", ArgsBytes, len(buf))
	}
	v := wire.View[uint32](buf)
	return Args{Count: v[0], Dim: v[1], Clusters: v[2]}, nil
}

// Config selects the kernel's execution variant.
type Config struct {
	// Workers is the number of concurrent workers per unit. Minimum 1.
	Workers int

	// BurstBytes caps the scratch staging buffer for batched point reads.
	// Zero selects DefaultBurstBytes.
	BurstBytes int
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BurstBytes <= 0 {
		c.BurstBytes = DefaultBurstBytes
	}
	return c
}

// Shape fixes the region sizes a run needs. The host validates it against
// the fabric's capacity limits before loading.
type Shape struct {
	MaxPointsPerUnit int
	Dim              int
	Clusters         int
}

// NewImage builds the fabric image for one numeric policy and kernel
// configuration. Region capacities derive from the shape and the policy's
// feature, sum and count widths.
func NewImage[F numeric.Feature, S numeric.Sum](p numeric.Policy[F, S], cfg Config, shape Shape) fabric.Image {
	cfg = cfg.withDefaults()
	fw := wire.Size[F]()
	sw := wire.Size[S]()
	cw := wire.Size[numeric.Count]()

	return fabric.Image{
		Name: "kmeans_" + p.Name(),
		Regions: []fabric.Region{
			{Name: SymArgs, Capacity: ArgsBytes},
			{Name: SymPoints, Capacity: shape.MaxPointsPerUnit * shape.Dim * fw},
			{Name: SymCentroids, Capacity: shape.Clusters * shape.Dim * fw},
			{Name: SymSums, Capacity: shape.Clusters * shape.Dim * sw},
			{Name: SymCounts, Capacity: shape.Clusters * cw},
		},
		Run: func(ctx context.Context, u *fabric.Unit) error {
			return run(ctx, u, p, cfg)
		},
	}
}
