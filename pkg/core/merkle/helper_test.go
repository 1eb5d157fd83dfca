package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
	"github.com/stretchr/testify/require"
)

var sha = hash.CompressorFunc(hash.Sha256Compress)

func testLeaf(i int) util.Uint256 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(i)+1)
	return sha256.Sum256(b[:])
}

func testLeaves(from, n int) []util.Uint256 {
	res := make([]util.Uint256, n)
	for i := range res {
		res[i] = testLeaf(from + i)
	}
	return res
}

func newTestConfig(s storage.Store) Config {
	return Config{
		Store:  s,
		Hasher: hash.NewSequentialHasher(sha),
	}
}

func newTestTree(t *testing.T, depth int) (*Tree, *storage.MemoryStore) {
	s := storage.NewMemoryStore()
	tr, err := New("notes", depth, newTestConfig(s))
	require.NoError(t, err)
	return tr, s
}

// refTree is a dense in-memory model of the tree.
type refTree struct {
	leaves []util.Uint256
}

func newRefTree(depth int, initial util.Uint256) *refTree {
	r := &refTree{leaves: make([]util.Uint256, 1<<depth)}
	for i := range r.leaves {
		r.leaves[i] = initial
	}
	return r
}

func (r *refTree) set(index int, leaves ...util.Uint256) {
	copy(r.leaves[index:], leaves)
}

func (r *refTree) root(t *testing.T) util.Uint256 {
	root, err := hash.Root(sha, r.leaves)
	require.NoError(t, err)
	return root
}

// checkTree compares the tree with the model and checks paths of all leaves.
func checkTree(t *testing.T, tr *Tree, r *refTree) {
	require.Equal(t, r.root(t), tr.Root())
	for i, leaf := range r.leaves {
		path, err := tr.GetHashPath(uint64(i))
		require.NoError(t, err)
		require.Equal(t, tr.Depth(), len(path))
		require.True(t, path.Verify(tr.Root(), uint64(i), leaf, sha), "leaf %d", i)
	}
}

func insert(t *testing.T, tr *Tree, index int, leaves []util.Uint256) {
	require.NoError(t, tr.UpdateLeafHashes(context.Background(), uint64(index), leaves))
}
