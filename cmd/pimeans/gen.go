package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pimeans/dataset"
	"github.com/hupe1980/pimeans/numeric"
)

var (
	genPoints   int
	genFeatures int
	genSeed     int64
	genCodec    string
	genPolicy   string
	genOut      string
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a dataset file of uniform integer-valued points",
	RunE:  runGen,
}

func init() {
	genCmd.Flags().IntVarP(&genPoints, "points", "p", 10000, "number of points")
	genCmd.Flags().IntVarP(&genFeatures, "features", "f", 2, "features per point")
	genCmd.Flags().Int64Var(&genSeed, "seed", 1, "generation seed")
	genCmd.Flags().StringVar(&genCodec, "codec", "zstd", "payload codec (none, zstd, lz4)")
	genCmd.Flags().StringVar(&genPolicy, "policy", "float64", "feature width to store (float64, int16)")
	genCmd.Flags().StringVarP(&genOut, "out", "o", "points.pimd", "output path")
}

func runGen(cmd *cobra.Command, _ []string) error {
	codec, err := dataset.ParseCodec(genCodec)
	if err != nil {
		return err
	}
	if genPoints < 1 || genFeatures < 1 {
		return fmt.Errorf("points and features must be >= 1")
	}

	points := dataset.Uniform(genPoints, genFeatures, genSeed)

	switch genPolicy {
	case "float64":
		err = dataset.Save(genOut, points, genFeatures, codec)
	case "int16":
		err = dataset.Save(genOut, numeric.Quantize(points), genFeatures, codec)
	default:
		return fmt.Errorf("unknown policy %q (want float64 or int16)", genPolicy)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d points x %d features (%s, %s) to %s\n",
		genPoints, genFeatures, genPolicy, codec, genOut)
	return nil
}
