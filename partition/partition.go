// Package partition computes balanced block distributions of a point range
// across compute units. The same rule is applied twice: once by the host to
// spread the dataset over units, and once inside each unit to spread the
// unit's block over its workers.
package partition

import "fmt"

// Block assigns a contiguous run of points to one unit.
type Block struct {
	Unit   int
	Offset int
	Count  int
}

// Split divides [0, n) into u contiguous, non-overlapping blocks.
// The first n%u blocks receive one extra point, so no two blocks differ in
// size by more than one. The result is deterministic.
func Split(n, u int) ([]Block, error) {
	if u < 1 {
		return nil, fmt.Errorf("partition: unit count must be >= 1, got %d", u)
	}
	if n < 0 {
		return nil, fmt.Errorf("partition: point count must be >= 0, got %d", n)
	}

	base := n / u
	rem := n % u

	blocks := make([]Block, u)
	off := 0
	for i := 0; i < u; i++ {
		count := base
		if i < rem {
			count++
		}
		blocks[i] = Block{Unit: i, Offset: off, Count: count}
		off += count
	}
	return blocks, nil
}

// MaxCount returns the largest block size in the partition.
func MaxCount(blocks []Block) int {
	max := 0
	for _, b := range blocks {
		if b.Count > max {
			max = b.Count
		}
	}
	return max
}
