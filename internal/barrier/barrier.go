// Package barrier provides a reusable N-party rendezvous barrier.
//
// All N parties must call Wait before any of them proceeds past it. The
// barrier resets itself after each rendezvous, so the same instance
// separates successive phases of a parallel computation.
package barrier

import "sync"

// Barrier synchronizes a fixed number of parties.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	gen     uint64
}

// New creates a barrier for the given number of parties.
// Panics if parties < 1.
func New(parties int) *Barrier {
	if parties < 1 {
		panic("barrier: parties must be >= 1")
	}
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int { return b.parties }

// Wait blocks until all parties have called Wait, then releases them all
// and resets the barrier for the next rendezvous.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.arrived++
	if b.arrived == b.parties {
		// Last arrival opens the barrier for this generation.
		b.arrived = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}
