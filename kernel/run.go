package kernel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pimeans/fabric"
	"github.com/hupe1980/pimeans/internal/barrier"
	"github.com/hupe1980/pimeans/internal/wire"
	"github.com/hupe1980/pimeans/numeric"
	"github.com/hupe1980/pimeans/partition"
)

// run executes one assignment phase on a single unit: every worker scans
// its balanced sub-range of the unit's point block against the broadcast
// centroid table, accumulating private per-cluster sums and counts, then
// worker 0 merges all accumulators in order and writes the unit's partial
// result to bulk memory.
func run[F numeric.Feature, S numeric.Sum](ctx context.Context, u *fabric.Unit, p numeric.Policy[F, S], cfg Config) error {
	args, err := readArgs(u)
	if err != nil {
		return err
	}
	count, err := wire.Uint32ToInt(args.Count)
	if err != nil {
		return err
	}
	dim, err := wire.Uint32ToInt(args.Dim)
	if err != nil {
		return err
	}
	k, err := wire.Uint32ToInt(args.Clusters)
	if err != nil {
		return err
	}
	if dim < 1 || k < 1 {
		return fmt.Errorf("kernel: invalid shape dim=%d clusters=%d", dim, k)
	}

	// The centroid table is read once per launch and is read-only for the
	// whole assignment phase.
	fw := wire.Size[F]()
	centroidBytes := make([]byte, k*dim*fw)
	if err := u.ReadBulk(SymCentroids, 0, centroidBytes); err != nil {
		return err
	}
	centroids := wire.View[F](centroidBytes)

	workers := cfg.Workers
	blocks, err := partition.Split(count, workers)
	if err != nil {
		return err
	}

	// One private accumulator pair per worker. Nothing reads another
	// worker's pair before the barrier.
	sums := make([][]S, workers)
	counts := make([][]numeric.Count, workers)
	for w := range sums {
		sums[w] = make([]S, k*dim)
		counts[w] = make([]numeric.Count, k)
	}

	bar := barrier.New(workers)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			assignErr := assign(ctx, u, p, cfg, blocks[w], dim, centroids, sums[w], counts[w])

			// All workers rendezvous before any accumulator is shared.
			// A failed worker still arrives, or the rest would wait forever;
			// the group context cancellation drains the others promptly.
			bar.Wait()

			if assignErr != nil {
				return assignErr
			}
			if w != 0 {
				return nil
			}
			if err := ctx.Err(); err != nil {
				// Another worker failed; skip the merge, the group reports it.
				return nil
			}

			// Ordered linear merge into worker 0's accumulators.
			for t := 1; t < workers; t++ {
				for i := range sums[0] {
					sums[0][i] += sums[t][i]
				}
				for c := range counts[0] {
					counts[0][c] += counts[t][c]
				}
			}
			if err := u.WriteBulk(SymSums, 0, wire.Bytes(sums[0])); err != nil {
				return err
			}
			return u.WriteBulk(SymCounts, 0, wire.Bytes(counts[0]))
		})
	}
	return g.Wait()
}

// assign scans one worker's sub-range. The range is read from bulk memory
// either whole (when it fits fast scratch) or in successive bounded bursts,
// in index order with no point skipped or revisited.
func assign[F numeric.Feature, S numeric.Sum](
	ctx context.Context,
	u *fabric.Unit,
	p numeric.Policy[F, S],
	cfg Config,
	block partition.Block,
	dim int,
	centroids []F,
	sums []S,
	counts []numeric.Count,
) error {
	if block.Count == 0 {
		return nil
	}

	fw := wire.Size[F]()
	pointBytes := dim * fw
	rangeBytes := block.Count * pointBytes

	burstPoints := block.Count
	if rangeBytes > u.ScratchBytes() {
		burstPoints = cfg.BurstBytes / pointBytes
		if burstPoints < 1 {
			return fmt.Errorf("kernel: burst buffer of %d bytes cannot hold a %d-byte point", cfg.BurstBytes, pointBytes)
		}
	}

	scratch := make([]byte, burstPoints*pointBytes)

	for done := 0; done < block.Count; {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := burstPoints
		if rest := block.Count - done; n > rest {
			n = rest
		}
		byteOff := (block.Offset + done) * pointBytes
		burst := scratch[:n*pointBytes]
		if err := u.ReadBulk(SymPoints, byteOff, burst); err != nil {
			return err
		}

		points := wire.View[F](burst)
		for i := 0; i < n; i++ {
			point := points[i*dim : (i+1)*dim]
			best := assignPoint(p, point, centroids, dim)
			counts[best]++
			row := sums[best*dim : (best+1)*dim]
			for f := 0; f < dim; f++ {
				row[f] += S(point[f])
			}
		}
		done += n
	}
	return nil
}

// assignPoint returns the index of the nearest centroid, breaking ties in
// favor of the lowest index (strict less-than, first minimum wins).
func assignPoint[F numeric.Feature, S numeric.Sum](p numeric.Policy[F, S], point, centroids []F, dim int) int {
	best := 0
	bestDist := p.Distance(point, centroids[:dim])
	k := len(centroids) / dim
	for c := 1; c < k; c++ {
		d := p.Distance(point, centroids[c*dim:(c+1)*dim])
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func readArgs(u *fabric.Unit) (Args, error) {
	buf := make([]byte, ArgsBytes)
	if err := u.ReadBulk(SymArgs, 0, buf); err != nil {
		return Args{}, err
	}
	return DecodeArgs(buf)
}
