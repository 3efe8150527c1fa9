package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pimeans/numeric"
)

var (
	scenarioPoints    = []float64{0, 0, 1, 0, 0, 1, 10, 10, 11, 10, 10, 11}
	scenarioCentroids = []float64{0, 0, 10, 0}
)

func TestSingleIterationScenario(t *testing.T) {
	ctx := context.Background()

	res, err := KMeans[float64, float64](ctx, numeric.Float64{},
		scenarioPoints, 2, scenarioCentroids, 0.0001, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 1.0/3.0, res.Centroids[0], 1e-12)
	assert.InDelta(t, 1.0/3.0, res.Centroids[1], 1e-12)
	assert.InDelta(t, 31.0/3.0, res.Centroids[2], 1e-12)
	assert.InDelta(t, 31.0/3.0, res.Centroids[3], 1e-12)

	// The input table is never mutated.
	assert.Equal(t, []float64{0, 0, 10, 0}, scenarioCentroids)
}

func TestConvergesOnSeparatedClusters(t *testing.T) {
	ctx := context.Background()

	res, err := KMeans[float64, float64](ctx, numeric.Float64{},
		scenarioPoints, 2, scenarioCentroids, 0.0001, 300)
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Iterations, 300)
	assert.LessOrEqual(t, res.Shift, 0.0001)
	assert.InDelta(t, 1.0/3.0, res.Centroids[0], 1e-9)
	assert.InDelta(t, 31.0/3.0, res.Centroids[2], 1e-9)
}

func TestInt16MatchesFloatAssignment(t *testing.T) {
	ctx := context.Background()

	res, err := KMeans[int16, int64](ctx, numeric.Int16{},
		numeric.Quantize(scenarioPoints), 2, numeric.Quantize(scenarioCentroids), 0.0001, 300)
	require.NoError(t, err)

	// Integer means truncate: 1/3 -> 0, 31/3 -> 10.
	assert.Equal(t, []int16{0, 0, 10, 10}, res.Centroids)
}

func TestEmptyClusterFreeze(t *testing.T) {
	ctx := context.Background()

	// The second centroid is far from every point and attracts nothing;
	// it must survive the update bit for bit.
	points := []float64{1, 1, 2, 2, 3, 3}
	initial := []float64{2, 2, 1000, 1000}

	res, err := KMeans[float64, float64](ctx, numeric.Float64{}, points, 2, initial, 0.0001, 50)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, res.Centroids[2])
	assert.Equal(t, 1000.0, res.Centroids[3])
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := KMeans[float64, float64](ctx, numeric.Float64{},
		scenarioPoints, 2, scenarioCentroids, 0.0001, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidShapes(t *testing.T) {
	ctx := context.Background()

	_, err := KMeans[float64, float64](ctx, numeric.Float64{}, scenarioPoints, 0, scenarioCentroids, 0.1, 10)
	assert.Error(t, err)

	_, err = KMeans[float64, float64](ctx, numeric.Float64{}, scenarioPoints, 2, nil, 0.1, 10)
	assert.Error(t, err)

	_, err = KMeans[float64, float64](ctx, numeric.Float64{}, []float64{1, 2, 3}, 2, scenarioCentroids, 0.1, 10)
	assert.Error(t, err)
}
