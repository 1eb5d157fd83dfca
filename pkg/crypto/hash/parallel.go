package hash

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/nspcc-dev/notetree/pkg/util"
	"golang.org/x/sync/errgroup"
)

// ParallelHasher spreads HashToTree over a fixed number of workers. Each
// worker hashes a disjoint power-of-two slice of the input into its own local
// subtree; the few top levels where worker subtrees meet are then merged on
// the calling goroutine.
type ParallelHasher struct {
	Compressor

	workers int
}

var _ Hasher = (*ParallelHasher)(nil)

// NewParallelHasher returns a Hasher using up to poolSize concurrent workers.
// Non-positive poolSize means runtime.NumCPU().
func NewParallelHasher(c Compressor, poolSize int) *ParallelHasher {
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	return &ParallelHasher{Compressor: c, workers: poolSize}
}

// Workers returns the size of the worker pool.
func (p *ParallelHasher) Workers() int {
	return p.workers
}

// workerCount returns the number of workers used for n values: no more than
// n/2 and the pool size, rounded down to a power of two so that every worker
// gets an equal power-of-two slice.
func (p *ParallelHasher) workerCount(n int) int {
	w := n / 2
	if p.workers < w {
		w = p.workers
	}
	if w < 1 {
		return 1
	}
	return 1 << Log2(w)
}

// HashToTree implements Hasher interface.
func (p *ParallelHasher) HashToTree(ctx context.Context, values []util.Uint256) ([]util.Uint256, error) {
	if !IsPowerOfTwo(len(values)) {
		return nil, fmt.Errorf("%w: %d", ErrNotPowerOfTwo, len(values))
	}
	start := time.Now()
	workers := p.workerCount(len(values))
	if workers == 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := hashToTree(p.Compressor, values)
		observeHashToTree(len(values), time.Since(start))
		return res, nil
	}

	var (
		sliceSize = len(values) / workers
		partial   = make([][]util.Uint256, workers)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial[i] = hashToTree(p.Compressor, values[i*sliceSize:(i+1)*sliceSize])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Glue worker rows of the same level together, leaf rows first.
	var rows [][]util.Uint256
	for offset, layerSize := 0, sliceSize; layerSize >= 1; layerSize /= 2 {
		row := make([]util.Uint256, 0, layerSize*workers)
		for i := range partial {
			row = append(row, partial[i][offset:offset+layerSize]...)
		}
		rows = append(rows, row)
		offset += layerSize
	}

	// Worker roots form the top row, finish the tree sequentially.
	for top := rows[len(rows)-1]; len(top) > 1; top = rows[len(rows)-1] {
		next := make([]util.Uint256, len(top)/2)
		for i := range next {
			next[i] = p.Compress(top[2*i], top[2*i+1])
		}
		rows = append(rows, next)
	}

	res := make([]util.Uint256, 0, 2*len(values)-1)
	for _, row := range rows {
		res = append(res, row...)
	}
	observeHashToTree(len(values), time.Since(start))
	return res, nil
}
