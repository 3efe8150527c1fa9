package barrier

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitReleasesAllParties(t *testing.T) {
	const parties = 8
	b := New(parties)

	var before, after atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			before.Add(1)
			b.Wait()
			// Every party must have arrived before any one proceeds.
			assert.Equal(t, int32(parties), before.Load())
			after.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(parties), after.Load())
}

func TestReusableAcrossPhases(t *testing.T) {
	const parties = 4
	const phases = 16
	b := New(parties)

	var arrivals atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 0; p < phases; p++ {
				arrivals.Add(1)
				b.Wait()
				// After rendezvous p, exactly (p+1)*parties arrivals happened.
				assert.Equal(t, int32((p+1)*parties), arrivals.Load())
				b.Wait()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(phases*parties), arrivals.Load())
}

func TestSingleParty(t *testing.T) {
	b := New(1)
	b.Wait() // must not block
	b.Wait()
	assert.Equal(t, 1, b.Parties())
}

func TestNewPanicsOnZeroParties(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}
