package pimeans_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pimeans"
	"github.com/hupe1980/pimeans/fabric"
	"github.com/hupe1980/pimeans/numeric"
	"github.com/hupe1980/pimeans/oracle"
)

var (
	scenarioPoints    = []float64{0, 0, 1, 0, 0, 1, 10, 10, 11, 10, 10, 11}
	scenarioCentroids = []float64{0, 0, 10, 0}
)

func TestRunSingleIterationScenario(t *testing.T) {
	eng, err := pimeans.Float64().
		InitialCentroids(scenarioCentroids).
		FixedIterations(1).
		Build()
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), scenarioPoints, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.InDelta(t, 1.0/3.0, res.Centroids[0], 1e-12)
	assert.InDelta(t, 1.0/3.0, res.Centroids[1], 1e-12)
	assert.InDelta(t, 31.0/3.0, res.Centroids[2], 1e-12)
	assert.InDelta(t, 31.0/3.0, res.Centroids[3], 1e-12)
}

func TestRunMatchesOracleExactly(t *testing.T) {
	// One unit, one worker: the engine performs the oracle's arithmetic in
	// the oracle's order, so the results must be bit-identical.
	eng, err := pimeans.Float64().
		InitialCentroids(scenarioCentroids).
		Build()
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), scenarioPoints, 2, 2)
	require.NoError(t, err)

	ref, err := oracle.KMeans[float64, float64](context.Background(), numeric.Float64{},
		scenarioPoints, 2, scenarioCentroids, pimeans.DefaultThreshold, pimeans.DefaultMaxIterations)
	require.NoError(t, err)

	assert.Equal(t, ref.Centroids, res.Centroids)
	assert.Equal(t, ref.Iterations, res.Iterations)
}

func TestRunInt16MatchesOracle(t *testing.T) {
	// Integer arithmetic is exact, so unit and worker splits cannot change
	// the result at all.
	pts := numeric.Quantize(scenarioPoints)
	init := numeric.Quantize(scenarioCentroids)

	ref, err := oracle.KMeans[int16, int64](context.Background(), numeric.Int16{},
		pts, 2, init, pimeans.DefaultThreshold, pimeans.DefaultMaxIterations)
	require.NoError(t, err)
	require.Equal(t, []int16{0, 0, 10, 10}, ref.Centroids)

	for _, units := range []int{1, 2, 3} {
		eng, err := pimeans.Int16().
			Units(units).
			Workers(4).
			InitialCentroids(init).
			Build()
		require.NoError(t, err)

		res, err := eng.Run(context.Background(), pts, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, ref.Centroids, res.Centroids, "units=%d", units)
		assert.Equal(t, ref.Iterations, res.Iterations, "units=%d", units)
	}
}

func TestRunReductionInvariance(t *testing.T) {
	// Integer-valued floats keep every sum exact, so splitting across
	// units, workers or bursts must reproduce the single-unit result bit
	// for bit.
	dim := 3
	n := 61 // not divisible by the unit counts below
	points := make([]float64, n*dim)
	for i := range points {
		points[i] = float64((i * 37) % 99)
	}
	initial := []float64{0, 0, 0, 50, 50, 50, 98, 0, 98}

	base, err := pimeans.Float64().
		InitialCentroids(initial).
		Build()
	require.NoError(t, err)
	want, err := base.Run(context.Background(), points, dim, 3)
	require.NoError(t, err)

	variants := []struct {
		name string
		eng  *pimeans.Engine[float64, float64]
	}{
		{"multi-unit", pimeans.Float64().Units(4).InitialCentroids(initial).MustBuild()},
		{"multi-worker", pimeans.Float64().Workers(8).InitialCentroids(initial).MustBuild()},
		{"bursted", pimeans.Float64().
			Units(2).Workers(3).BurstBytes(48).
			Fabric(fabric.NewSim(fabric.WithScratchBytes(64))).
			InitialCentroids(initial).
			CapacityLimits(pimeans.Limits{
				MaxPointsPerUnit: 65536,
				MaxFeatures:      16,
				MaxClusters:      16,
				ScratchBytes:     64 * 1024,
			}).
			MustBuild()},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			res, err := v.eng.Run(context.Background(), points, dim, 3)
			require.NoError(t, err)
			assert.Equal(t, want.Centroids, res.Centroids)
			assert.Equal(t, want.Iterations, res.Iterations)
		})
	}
}

func TestRunEmptyClusterFreeze(t *testing.T) {
	points := []float64{1, 1, 2, 2, 3, 3}
	initial := []float64{2, 2, 90, 90}

	eng, err := pimeans.Float64().
		Units(2).
		InitialCentroids(initial).
		Build()
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), points, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 90.0, res.Centroids[2])
	assert.Equal(t, 90.0, res.Centroids[3])
}

func TestRunSeededDeterminism(t *testing.T) {
	points := make([]float64, 200)
	for i := range points {
		points[i] = float64((i * 13) % 99)
	}

	run := func() *pimeans.Result[float64] {
		eng, err := pimeans.Float64().
			Units(2).
			Workers(2).
			RandomSeed(42).
			Build()
		require.NoError(t, err)
		res, err := eng.Run(context.Background(), points, 2, 4)
		require.NoError(t, err)
		return res
	}

	a := run()
	b := run()
	assert.Equal(t, a.Centroids, b.Centroids)
	assert.Equal(t, a.Iterations, b.Iterations)
}

func TestRunFixedIterationsFromOracle(t *testing.T) {
	// Oracle-bound mode: the distributed loop runs for exactly the
	// iteration count the serial reference needed, ignoring its own shift.
	pts := numeric.Quantize(scenarioPoints)
	init := numeric.Quantize(scenarioCentroids)

	ref, err := oracle.KMeans[int16, int64](context.Background(), numeric.Int16{},
		pts, 2, init, 0.0001, 300)
	require.NoError(t, err)

	eng, err := pimeans.Int16().
		Units(2).
		InitialCentroids(init).
		FixedIterations(ref.Iterations).
		Build()
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), pts, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, ref.Iterations, res.Iterations)
	assert.Equal(t, ref.Centroids, res.Centroids)
}

func TestRunTerminatesWithinMaxIterations(t *testing.T) {
	points := make([]float64, 300)
	for i := range points {
		points[i] = float64((i * 7) % 99)
	}

	eng, err := pimeans.Float64().
		MaxIterations(5).
		Threshold(0). // force the iteration bound to be the stopper
		RandomSeed(7).
		Build()
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), points, 2, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Iterations, 5)
}

func TestBuildConfigErrors(t *testing.T) {
	var cfgErr *pimeans.ConfigError

	_, err := pimeans.Float64().Units(0).Build()
	require.ErrorAs(t, err, &cfgErr)

	_, err = pimeans.Float64().Workers(0).Build()
	require.ErrorAs(t, err, &cfgErr)

	_, err = pimeans.Float64().MaxIterations(0).Build()
	require.ErrorAs(t, err, &cfgErr)

	_, err = pimeans.Float64().Threshold(-1).Build()
	require.ErrorAs(t, err, &cfgErr)
}

func TestRunShapeErrors(t *testing.T) {
	ctx := context.Background()
	var cfgErr *pimeans.ConfigError

	eng := pimeans.Float64().MustBuild()

	_, err := eng.Run(ctx, scenarioPoints, 0, 2)
	require.ErrorAs(t, err, &cfgErr)

	_, err = eng.Run(ctx, scenarioPoints, 2, 0)
	require.ErrorAs(t, err, &cfgErr)

	_, err = eng.Run(ctx, []float64{1, 2, 3}, 2, 1)
	require.ErrorAs(t, err, &cfgErr)

	// Burst buffer smaller than one point is a configuration problem.
	_, err = pimeans.Float64().BurstBytes(8).MustBuild().Run(ctx, scenarioPoints, 2, 2)
	require.ErrorAs(t, err, &cfgErr)
}

func TestRunCapacityErrors(t *testing.T) {
	ctx := context.Background()
	var capErr *pimeans.CapacityError

	limits := pimeans.Limits{
		MaxPointsPerUnit: 4,
		MaxFeatures:      2,
		MaxClusters:      2,
		ScratchBytes:     64 * 1024,
	}

	// 6 points on one unit exceed the 4-point limit.
	eng := pimeans.Float64().CapacityLimits(limits).MustBuild()
	_, err := eng.Run(ctx, scenarioPoints, 2, 2)
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "points per unit", capErr.Resource)

	// Two units fit; three clusters do not.
	eng = pimeans.Float64().Units(2).CapacityLimits(limits).MustBuild()
	_, err = eng.Run(ctx, scenarioPoints, 2, 3)
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "clusters", capErr.Resource)

	// Scratch must hold one worker's accumulators.
	limits.MaxClusters = 16
	limits.ScratchBytes = 16
	eng = pimeans.Float64().Units(2).CapacityLimits(limits).MustBuild()
	_, err = eng.Run(ctx, scenarioPoints, 2, 2)
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "worker scratch", capErr.Resource)
}

func TestRunFabricMemoryBudgetExceeded(t *testing.T) {
	var capErr *pimeans.CapacityError

	eng, err := pimeans.Float64().
		Units(4).
		Fabric(fabric.NewSim(fabric.WithHostMemoryBytes(256))).
		Build()
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), scenarioPoints, 2, 2)
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "fabric bulk memory", capErr.Resource)
}
