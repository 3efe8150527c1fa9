package fabric

import "fmt"

// Unit is the execution context handed to a kernel while it runs. It owns
// the unit's bulk regions; reads and writes are plain byte copies, the
// in-process stand-in for DMA between bulk and scratch memory.
type Unit struct {
	id           int
	regions      map[string][]byte
	scratchBytes int
}

// ID returns the unit's index within its set.
func (u *Unit) ID() int { return u.id }

// ScratchBytes returns the per-worker fast scratch capacity in bytes.
func (u *Unit) ScratchBytes() int { return u.scratchBytes }

// ReadBulk copies len(dst) bytes from the symbol region at offset into dst.
func (u *Unit) ReadBulk(symbol string, offset int, dst []byte) error {
	reg, err := u.region(symbol, offset, len(dst))
	if err != nil {
		return err
	}
	copy(dst, reg[offset:offset+len(dst)])
	return nil
}

// WriteBulk copies src into the symbol region at offset.
func (u *Unit) WriteBulk(symbol string, offset int, src []byte) error {
	reg, err := u.region(symbol, offset, len(src))
	if err != nil {
		return err
	}
	copy(reg[offset:offset+len(src)], src)
	return nil
}

func (u *Unit) region(symbol string, offset, size int) ([]byte, error) {
	reg, ok := u.regions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q (unit %d)", ErrNoSymbol, symbol, u.id)
	}
	if offset < 0 || size < 0 || offset+size > len(reg) {
		return nil, fmt.Errorf("%w: %q [%d:%d) of %d bytes (unit %d)",
			ErrOutOfRange, symbol, offset, offset+size, len(reg), u.id)
	}
	return reg, nil
}
