package hash

import (
	"context"
	"fmt"
	"time"

	"github.com/nspcc-dev/notetree/pkg/util"
)

// SequentialHasher computes HashToTree on the calling goroutine.
type SequentialHasher struct {
	Compressor
}

var _ Hasher = (*SequentialHasher)(nil)

// NewSequentialHasher returns a single-threaded Hasher built on c.
func NewSequentialHasher(c Compressor) *SequentialHasher {
	return &SequentialHasher{Compressor: c}
}

// HashToTree implements Hasher interface.
func (h *SequentialHasher) HashToTree(ctx context.Context, values []util.Uint256) ([]util.Uint256, error) {
	if !IsPowerOfTwo(len(values)) {
		return nil, fmt.Errorf("%w: %d", ErrNotPowerOfTwo, len(values))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := hashToTree(h.Compressor, values)
	observeHashToTree(len(values), time.Since(start))
	return res, nil
}

// hashToTree computes the flat level-ordered dense tree over a power-of-two
// number of values.
func hashToTree(c Compressor, values []util.Uint256) []util.Uint256 {
	res := make([]util.Uint256, 0, 2*len(values)-1)
	res = append(res, values...)
	for offset, layerSize := 0, len(values); layerSize > 1; layerSize /= 2 {
		for i := 0; i < layerSize; i += 2 {
			res = append(res, c.Compress(res[offset+i], res[offset+i+1]))
		}
		offset += layerSize
	}
	return res
}

// Root folds a power-of-two number of values into the root hash using
// pairwise compression. Values are not modified.
func Root(c Compressor, values []util.Uint256) (util.Uint256, error) {
	if !IsPowerOfTwo(len(values)) {
		return util.Uint256{}, fmt.Errorf("%w: %d", ErrNotPowerOfTwo, len(values))
	}
	row := append([]util.Uint256(nil), values...)
	for len(row) > 1 {
		for i := 0; i < len(row)/2; i++ {
			row[i] = c.Compress(row[2*i], row[2*i+1])
		}
		row = row[:len(row)/2]
	}
	return row[0], nil
}
