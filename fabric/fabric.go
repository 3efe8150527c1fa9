// Package fabric abstracts the compute fabric the clustering engine runs
// on: a set of independent units, each with named bulk-memory regions, a
// loadable kernel image and a synchronous launch primitive.
//
// The package deliberately mirrors a narrow accelerator runtime surface —
// allocate, load, prepare/push transfer, launch, free — so the engine's
// transfer protocol stays fixed regardless of what actually executes the
// kernels. Sim provides the in-process implementation.
package fabric

import (
	"context"
	"errors"
)

// Direction says which way a transfer moves relative to the units.
type Direction int

const (
	// ToUnit moves host bytes into a unit's bulk region.
	ToUnit Direction = iota
	// FromUnit moves a unit's bulk region bytes back to the host.
	FromUnit
)

func (d Direction) String() string {
	switch d {
	case ToUnit:
		return "to_unit"
	case FromUnit:
		return "from_unit"
	default:
		return "unknown"
	}
}

// Region declares one named bulk-memory symbol and its byte capacity.
type Region struct {
	Name     string
	Capacity int
}

// Image is a loadable kernel: the bulk symbols it declares and the entry
// point executed once per unit on every launch.
type Image struct {
	Name    string
	Regions []Region
	Run     func(ctx context.Context, u *Unit) error
}

var (
	// ErrNoImage is returned when Launch is called before Load.
	ErrNoImage = errors.New("fabric: no kernel image loaded")
	// ErrNoSymbol is returned when a transfer names an undeclared symbol.
	ErrNoSymbol = errors.New("fabric: unknown symbol")
	// ErrOutOfRange is returned when a transfer exceeds a region's capacity.
	ErrOutOfRange = errors.New("fabric: transfer out of range")
	// ErrNothingPrepared is returned when PushTransfer runs with no
	// prepared host buffers.
	ErrNothingPrepared = errors.New("fabric: no transfer prepared")
	// ErrClosed is returned when a set is used after Close.
	ErrClosed = errors.New("fabric: set closed")
	// ErrHostMemory is returned when allocating a set would exceed the
	// fabric's host memory budget.
	ErrHostMemory = errors.New("fabric: host memory budget exceeded")
)

// Set is an allocated group of units. All methods are host-side and must
// be called from a single goroutine; units only execute during Launch.
type Set interface {
	// Load installs the kernel image on every unit and sizes their bulk
	// regions from the image's declarations.
	Load(img Image) error

	// Units returns the number of units in the set.
	Units() int

	// PrepareTransfer stages a host buffer for the given unit. The next
	// PushTransfer consumes all staged buffers.
	PrepareTransfer(unit int, buf []byte) error

	// PushTransfer moves size bytes at the given region offset between
	// each staged host buffer and its unit's symbol region, then clears
	// the staging. Transfers are bit-faithful byte copies.
	PushTransfer(ctx context.Context, dir Direction, symbol string, offset, size int) error

	// Launch runs the loaded kernel on every unit and blocks until all
	// units have finished. Any unit error aborts the launch.
	Launch(ctx context.Context) error

	// Close releases the set and returns its memory to the fabric budget.
	// Close is idempotent.
	Close() error
}

// Fabric allocates unit sets.
type Fabric interface {
	Allocate(units int) (Set, error)
}
