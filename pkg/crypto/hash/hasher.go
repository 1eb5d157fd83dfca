/*
Package hash contains the hashing primitives of the tree: pairwise compression
functions and HashToTree implementations producing the full level-ordered hash
set of a dense power-of-two subtree.
*/
package hash

import (
	"context"
	"errors"

	"github.com/nspcc-dev/notetree/pkg/util"
)

// ErrNotPowerOfTwo is returned by HashToTree implementations when the number
// of input values is not a power of two.
var ErrNotPowerOfTwo = errors.New("number of values is not a power of two")

// Compressor is a pure deterministic pairwise compression function. It must be
// safe for concurrent use.
type Compressor interface {
	Compress(left, right util.Uint256) util.Uint256
}

// Hasher is the hashing capability the tree depends on.
type Hasher interface {
	Compressor
	// HashToTree hashes a power-of-two number of leaf values into a flat
	// level-ordered slice of 2*len(values)-1 hashes: the leaf row first, then
	// every internal row, with the subtree root as the last element.
	HashToTree(ctx context.Context, values []util.Uint256) ([]util.Uint256, error)
}

// CompressorFunc is an adapter allowing to use ordinary functions as
// Compressor.
type CompressorFunc func(left, right util.Uint256) util.Uint256

// Compress implements Compressor interface.
func (f CompressorFunc) Compress(left, right util.Uint256) util.Uint256 {
	return f(left, right)
}

// IsPowerOfTwo tells whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the binary logarithm of a power of two n.
func Log2(n int) int {
	var l int
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// NewHasher creates a Hasher for the named compression function. A single
// worker gives the sequential implementation, any other value a
// ParallelHasher (non-positive meaning one worker per CPU).
func NewHasher(name string, workers int) (Hasher, error) {
	c, err := NewCompressor(name)
	if err != nil {
		return nil, err
	}
	if workers == 1 {
		return NewSequentialHasher(c), nil
	}
	return NewParallelHasher(c, workers), nil
}
