package fabric

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultScratchBytes is the per-worker fast scratch capacity.
	DefaultScratchBytes = 64 * 1024

	// DefaultHostMemoryBytes bounds the bulk memory a Sim hands out
	// across all allocated sets.
	DefaultHostMemoryBytes = 1 << 30
)

// SimOption configures the simulated fabric.
type SimOption func(*Sim)

// WithScratchBytes overrides the per-worker scratch capacity reported to
// kernels.
func WithScratchBytes(n int) SimOption {
	return func(s *Sim) {
		if n > 0 {
			s.scratchBytes = n
		}
	}
}

// WithHostMemoryBytes overrides the bulk memory budget.
func WithHostMemoryBytes(n int64) SimOption {
	return func(s *Sim) {
		if n > 0 {
			s.hostMemory = semaphore.NewWeighted(n)
		}
	}
}

// WithTransferRate throttles PushTransfer to the given bytes per second.
// Zero (the default) leaves transfers unthrottled.
func WithTransferRate(bytesPerSec int) SimOption {
	return func(s *Sim) {
		if bytesPerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
		}
	}
}

// Sim is an in-process compute fabric. Units are plain memory regions and
// a launch runs the kernel entry point on one goroutine per unit.
type Sim struct {
	scratchBytes int
	hostMemory   *semaphore.Weighted
	limiter      *rate.Limiter
}

// NewSim creates a simulated fabric.
func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		scratchBytes: DefaultScratchBytes,
		hostMemory:   semaphore.NewWeighted(DefaultHostMemoryBytes),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate creates a set of the given number of units.
func (s *Sim) Allocate(units int) (Set, error) {
	if units < 1 {
		return nil, fmt.Errorf("fabric: unit count must be >= 1, got %d", units)
	}
	set := &simSet{
		sim:      s,
		units:    make([]*Unit, units),
		prepared: make(map[int][]byte, units),
	}
	for i := range set.units {
		set.units[i] = &Unit{id: i, scratchBytes: s.scratchBytes}
	}
	return set, nil
}

type simSet struct {
	sim      *Sim
	units    []*Unit
	prepared map[int][]byte
	image    *Image
	reserved int64
	closed   bool
}

func (ss *simSet) Units() int { return len(ss.units) }

func (ss *simSet) Load(img Image) error {
	if ss.closed {
		return ErrClosed
	}
	if img.Run == nil {
		return fmt.Errorf("fabric: image %q has no entry point", img.Name)
	}

	var perUnit int64
	for _, r := range img.Regions {
		if r.Capacity < 0 {
			return fmt.Errorf("fabric: image %q region %q has negative capacity", img.Name, r.Name)
		}
		perUnit += int64(r.Capacity)
	}
	total := perUnit * int64(len(ss.units))
	if !ss.sim.hostMemory.TryAcquire(total) {
		return fmt.Errorf("%w: need %d bytes for image %q on %d units",
			ErrHostMemory, total, img.Name, len(ss.units))
	}

	// Re-loading replaces regions; return the previous reservation first.
	if ss.reserved > 0 {
		ss.sim.hostMemory.Release(ss.reserved)
	}
	ss.reserved = total

	for _, u := range ss.units {
		u.regions = make(map[string][]byte, len(img.Regions))
		for _, r := range img.Regions {
			u.regions[r.Name] = make([]byte, r.Capacity)
		}
	}
	ss.image = &img
	return nil
}

func (ss *simSet) PrepareTransfer(unit int, buf []byte) error {
	if ss.closed {
		return ErrClosed
	}
	if unit < 0 || unit >= len(ss.units) {
		return fmt.Errorf("fabric: unit %d out of range [0,%d)", unit, len(ss.units))
	}
	ss.prepared[unit] = buf
	return nil
}

func (ss *simSet) PushTransfer(ctx context.Context, dir Direction, symbol string, offset, size int) error {
	if ss.closed {
		return ErrClosed
	}
	if len(ss.prepared) == 0 {
		return fmt.Errorf("%w: symbol %q", ErrNothingPrepared, symbol)
	}
	defer clear(ss.prepared)

	for id, buf := range ss.prepared {
		if size > len(buf) {
			return fmt.Errorf("%w: host buffer for unit %d holds %d bytes, transfer wants %d",
				ErrOutOfRange, id, len(buf), size)
		}
		if ss.sim.limiter != nil {
			if err := waitBytes(ctx, ss.sim.limiter, size); err != nil {
				return fmt.Errorf("fabric: transfer throttled: %w", err)
			}
		}

		u := ss.units[id]
		var err error
		switch dir {
		case ToUnit:
			err = u.WriteBulk(symbol, offset, buf[:size])
		case FromUnit:
			err = u.ReadBulk(symbol, offset, buf[:size])
		default:
			err = fmt.Errorf("fabric: invalid direction %d", dir)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (ss *simSet) Launch(ctx context.Context) error {
	if ss.closed {
		return ErrClosed
	}
	if ss.image == nil {
		return ErrNoImage
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, u := range ss.units {
		u := u
		g.Go(func() error {
			if err := ss.image.Run(ctx, u); err != nil {
				return fmt.Errorf("fabric: unit %d: %w", u.id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (ss *simSet) Close() error {
	if ss.closed {
		return nil
	}
	ss.closed = true
	if ss.reserved > 0 {
		ss.sim.hostMemory.Release(ss.reserved)
		ss.reserved = 0
	}
	ss.units = nil
	ss.image = nil
	clear(ss.prepared)
	return nil
}

// waitBytes reserves n bytes from the limiter, splitting requests larger
// than the limiter's burst.
func waitBytes(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := l.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

var _ Fabric = (*Sim)(nil)
