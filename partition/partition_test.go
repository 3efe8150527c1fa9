package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitScenario(t *testing.T) {
	// N=10 over 3 units: counts {4,3,3}, offsets {0,4,7}.
	blocks, err := Split(10, 3)
	require.NoError(t, err)
	require.Len(t, blocks, 3)

	assert.Equal(t, Block{Unit: 0, Offset: 0, Count: 4}, blocks[0])
	assert.Equal(t, Block{Unit: 1, Offset: 4, Count: 3}, blocks[1])
	assert.Equal(t, Block{Unit: 2, Offset: 7, Count: 3}, blocks[2])
}

func TestSplitProperties(t *testing.T) {
	cases := []struct{ n, u int }{
		{0, 1}, {0, 7}, {1, 1}, {1, 5}, {5, 5},
		{6, 4}, {100, 7}, {65536, 64}, {3, 16},
	}

	for _, tc := range cases {
		blocks, err := Split(tc.n, tc.u)
		require.NoError(t, err)
		require.Len(t, blocks, tc.u)

		total := 0
		min, max := tc.n+1, -1
		for i, b := range blocks {
			assert.Equal(t, i, b.Unit)
			assert.Equal(t, total, b.Offset, "offset must be the prefix sum of prior counts")
			total += b.Count
			if b.Count < min {
				min = b.Count
			}
			if b.Count > max {
				max = b.Count
			}
		}
		assert.Equal(t, tc.n, total, "blocks must tile [0, n) exactly")
		assert.LessOrEqual(t, max-min, 1, "imbalance must not exceed one point")
	}
}

func TestSplitDeterministic(t *testing.T) {
	a, err := Split(1234, 17)
	require.NoError(t, err)
	b, err := Split(1234, 17)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplitInvalidUnitCount(t *testing.T) {
	_, err := Split(10, 0)
	assert.Error(t, err)

	_, err = Split(10, -1)
	assert.Error(t, err)
}

func TestMaxCount(t *testing.T) {
	blocks, err := Split(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, MaxCount(blocks))

	assert.Equal(t, 0, MaxCount(nil))
}
