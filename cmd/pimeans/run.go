package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pimeans"
	"github.com/hupe1980/pimeans/dataset"
	"github.com/hupe1980/pimeans/numeric"
	"github.com/hupe1980/pimeans/oracle"
)

var (
	runPoints      int
	runFeatures    int
	runClusters    int
	runUnits       int
	runWorkers     int
	runBurstBytes  int
	runPolicy      string
	runThreshold   float64
	runMaxIter     int
	runSeed        int64
	runData        string
	runConfigPath  string
	runOracleBound bool
	runWarmup      int
	runReps        int
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster a dataset on the simulated fabric and report timings",
	Long: `Cluster a dataset on the simulated fabric and report timings.

The command first runs a serial reference pass on the host, then executes
the same clustering across the configured units and workers. With
--oracle-bound the distributed loop runs exactly as many iterations as
the reference pass did, so both sides stay comparable step for step.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runPoints, "points", "p", 10000, "number of points to generate (ignored with --data)")
	runCmd.Flags().IntVarP(&runFeatures, "features", "f", 2, "features per point (ignored with --data)")
	runCmd.Flags().IntVarP(&runClusters, "clusters", "c", 4, "number of clusters")
	runCmd.Flags().IntVar(&runUnits, "units", 4, "compute units")
	runCmd.Flags().IntVar(&runWorkers, "workers", 4, "workers per unit")
	runCmd.Flags().IntVar(&runBurstBytes, "burst-bytes", 0, "bulk read burst size in bytes (0 = default)")
	runCmd.Flags().StringVar(&runPolicy, "policy", "float64", "numeric policy (float64, int16)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", pimeans.DefaultThreshold, "convergence threshold on centroid shift")
	runCmd.Flags().IntVar(&runMaxIter, "max-iter", pimeans.DefaultMaxIterations, "iteration cap")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "seed for data generation and centroid draw")
	runCmd.Flags().StringVar(&runData, "data", "", "dataset file to cluster instead of generated data")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "YAML config file (flags override)")
	runCmd.Flags().BoolVar(&runOracleBound, "oracle-bound", false, "run exactly the reference pass's iteration count")
	runCmd.Flags().IntVarP(&runWarmup, "warmup", "w", 0, "untimed warmup runs")
	runCmd.Flags().IntVarP(&runReps, "reps", "r", 1, "timed repetitions")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "log run phases")
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runConfigPath != "" {
		if err := applyConfigFile(cmd, runConfigPath); err != nil {
			return err
		}
	}
	if runReps < 1 {
		return fmt.Errorf("reps must be >= 1")
	}

	switch runPolicy {
	case "float64":
		points, dim, err := loadPoints[float64]()
		if err != nil {
			return err
		}
		return drive(cmd, pimeans.Float64(), points, dim)
	case "int16":
		points, dim, err := loadPoints[int16]()
		if err != nil {
			return err
		}
		return drive(cmd, pimeans.Int16(), points, dim)
	default:
		return fmt.Errorf("unknown policy %q (want float64 or int16)", runPolicy)
	}
}

// loadPoints reads the dataset file when one is given, otherwise generates
// uniform integer-valued points. The file's width must match the policy.
func loadPoints[F numeric.Feature]() ([]F, int, error) {
	if runData != "" {
		return dataset.Load[F](runData)
	}
	if runPoints < 1 || runFeatures < 1 {
		return nil, 0, fmt.Errorf("points and features must be >= 1")
	}
	wide := dataset.Uniform(runPoints, runFeatures, runSeed)
	points := make([]F, len(wide))
	for i, v := range wide {
		points[i] = F(v)
	}
	return points, runFeatures, nil
}

func drive[F numeric.Feature, S numeric.Sum](cmd *cobra.Command, b pimeans.Builder[F, S], points []F, dim int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	n := len(points) / dim

	initial := numeric.DrawCentroids(b.Policy(), runClusters, dim, runSeed)

	refStart := time.Now()
	ref, err := oracle.KMeans(ctx, b.Policy(), points, dim, initial, runThreshold, runMaxIter)
	if err != nil {
		return fmt.Errorf("reference pass: %w", err)
	}
	refElapsed := time.Since(refStart)

	b = b.
		Units(runUnits).
		Workers(runWorkers).
		Threshold(runThreshold).
		MaxIterations(runMaxIter).
		InitialCentroids(initial)
	if runBurstBytes > 0 {
		b = b.BurstBytes(runBurstBytes)
	}
	if runOracleBound {
		b = b.FixedIterations(ref.Iterations)
	}
	if runVerbose {
		b = b.Logger(pimeans.NewTextLogger(slog.LevelDebug))
	}

	setupStart := time.Now()
	engine, err := b.Build()
	if err != nil {
		return err
	}
	setupElapsed := time.Since(setupStart)

	for i := 0; i < runWarmup; i++ {
		if _, err := engine.Run(ctx, points, dim, runClusters); err != nil {
			return fmt.Errorf("warmup %d: %w", i, err)
		}
	}

	var (
		result *pimeans.Result[F]
		total  time.Duration
		timing pimeans.Timing
	)
	for i := 0; i < runReps; i++ {
		start := time.Now()
		result, err = engine.Run(ctx, points, dim, runClusters)
		if err != nil {
			return fmt.Errorf("rep %d: %w", i, err)
		}
		total += time.Since(start)
		timing.Setup += result.Timing.Setup
		timing.Launch += result.Timing.Launch
		timing.Read += result.Timing.Read
	}
	reps := time.Duration(runReps)
	total /= reps
	timing.Setup /= reps
	timing.Launch /= reps
	timing.Read /= reps

	fmt.Fprintf(out, "points=%d features=%d clusters=%d units=%d workers=%d policy=%s\n",
		n, dim, runClusters, runUnits, runWorkers, runPolicy)
	fmt.Fprintf(out, "reference: %d iterations, shift %.6g, %v\n", ref.Iterations, ref.Shift, refElapsed)
	fmt.Fprintf(out, "fabric:    %d iterations, shift %.6g (avg of %d)\n",
		result.Iterations, result.Shift, runReps)
	fmt.Fprintf(out, "timing:    build %v, setup %v, compute %v, read %v, total %v\n",
		setupElapsed, timing.Setup, timing.Launch, timing.Read, total)
	fmt.Fprintf(out, "max centroid delta vs reference: %.6g\n", maxDelta(ref.Centroids, result.Centroids))

	fmt.Fprintln(out, "centroids:")
	for c := 0; c < runClusters; c++ {
		row := result.Centroids[c*dim : (c+1)*dim]
		fmt.Fprintf(out, "  [%d]", c)
		for _, v := range row {
			fmt.Fprintf(out, " %g", float64(v))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func maxDelta[F numeric.Feature](a, b []F) float64 {
	if len(a) != len(b) {
		return -1
	}
	var worst float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}
