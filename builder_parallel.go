package csf

import (
	"context"

	"github.com/tamirms/csf/chunkstore"
	"github.com/tamirms/csf/codec"
	"golang.org/x/sync/errgroup"
)

const (
	// workChanBufferMultiplier is the multiplier for work channel buffer size
	workChanBufferMultiplier = 2
)

// solveChunks solves every chunk of store on a pool of workers.
//
// A producer goroutine replays the store into a bounded channel; each
// worker owns a chunkSolver and writes its result into results[q], so the
// output order does not depend on scheduling. Any error, including a
// duplicate reported by the store, cancels the group; solveChunks returns
// only after every goroutine has exited.
func solveChunks(ctx context.Context, store *chunkstore.Store, coder *codec.Coder, workers int, progress Progress) ([]chunkSolution, BuildStats, error) {
	numChunks := store.NumChunks()
	workers = max(1, min(workers, numChunks))
	results := make([]chunkSolution, numChunks)
	workerStats := make([]BuildStats, workers)

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan chunkstore.Chunk, workers*workChanBufferMultiplier)

	g.Go(func() error {
		defer close(work)
		return store.ForEachChunk(gctx, func(c chunkstore.Chunk) error {
			select {
			case work <- c:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	for i := range workers {
		g.Go(func() error {
			cs := newChunkSolver(coder)
			defer func() { workerStats[i] = cs.stats }()
			for c := range work {
				if err := gctx.Err(); err != nil {
					return err
				}
				sol, err := cs.solve(c.Records)
				if err != nil {
					return err
				}
				results[c.Index] = sol
				if progress != nil {
					_ = progress.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, BuildStats{}, err
	}

	var stats BuildStats
	for i := range workerStats {
		stats.merge(&workerStats[i])
	}
	return results, stats, nil
}
