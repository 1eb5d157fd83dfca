package merkle

import (
	"testing"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
	"github.com/stretchr/testify/require"
)

func newRefCountTree(t *testing.T, depth int) (*Tree, *storage.MemoryStore) {
	s := storage.NewMemoryStore()
	cfg := newTestConfig(s)
	cfg.Retention = RetentionRefCount
	tr, err := New("notes", depth, cfg)
	require.NoError(t, err)
	return tr, s
}

func nodeCount(s *storage.MemoryStore) int {
	var n int
	s.SeekAll(nil, func(k, v []byte) {
		if len(k) == util.Uint256Size {
			n++
		}
	})
	return n
}

func refCount(t *testing.T, s storage.Store, h util.Uint256) int {
	data, err := s.Get(storage.DataRefCount.AppendKey(h.BytesBE()))
	if err != nil {
		require.ErrorIs(t, err, storage.ErrKeyNotFound)
		return 0
	}
	require.Equal(t, 4, len(data))
	return int(data[0]) | int(data[1])<<8 | int(data[2])<<16 | int(data[3])<<24
}

func TestRetentionPolicy(t *testing.T) {
	require.True(t, RetentionPolicy("").IsValid())
	require.True(t, RetentionKeep.IsValid())
	require.True(t, RetentionRefCount.IsValid())
	require.False(t, RetentionPolicy("gc").IsValid())
}

func TestRetentionMismatch(t *testing.T) {
	tr, s := newTestTree(t, 3)
	require.NoError(t, tr.UpdateLeafHash(1, testLeaf(1)))

	data, err := s.Get(storage.DataRetention.Bytes())
	require.NoError(t, err)
	require.Equal(t, []byte(RetentionKeep), data)

	cfg := newTestConfig(s)
	cfg.Retention = RetentionRefCount
	_, err = Load("notes", cfg)
	require.ErrorIs(t, err, ErrRetentionMismatch)
	_, err = New("nullifiers", 3, cfg)
	require.ErrorIs(t, err, ErrRetentionMismatch)

	// Default policy matches keep.
	_, err = Load("notes", Config{Store: s})
	require.NoError(t, err)

	t.Run("no marker", func(t *testing.T) {
		require.NoError(t, s.Delete(storage.DataRetention.Bytes()))
		_, err = Load("notes", cfg)
		require.ErrorIs(t, err, ErrRetentionMismatch)
		_, err = Load("notes", newTestConfig(s))
		require.NoError(t, err)
	})
}

func TestKeepRetention(t *testing.T) {
	tr, s := newTestTree(t, 4)
	require.NoError(t, tr.UpdateLeafHash(0, testLeaf(0)))
	before := nodeCount(s)
	require.NoError(t, tr.UpdateLeafHash(0, testLeaf(1)))
	require.Equal(t, 2*before, nodeCount(s), "old nodes are kept")
}

func TestRefCountRetention(t *testing.T) {
	t.Run("replaced nodes are removed", func(t *testing.T) {
		tr, s := newRefCountTree(t, 4)
		ref := newRefTree(4, ZeroElement)
		require.NoError(t, tr.UpdateLeafHash(0, testLeaf(0)))
		require.Equal(t, 4, nodeCount(s))
		total := s.Len()

		for i := 1; i < 10; i++ {
			require.NoError(t, tr.UpdateLeafHash(0, testLeaf(i)))
			require.Equal(t, 4, nodeCount(s))
			require.Equal(t, total, s.Len())
		}
		ref.set(0, testLeaf(9))
		checkTree(t, tr, ref)
	})
	t.Run("shared nodes are kept", func(t *testing.T) {
		tr, s := newRefCountTree(t, 3)
		ref := newRefTree(3, ZeroElement)
		var (
			a = testLeaf(1)
			b = testLeaf(2)
			p = sha.Compress(a, b)
		)
		for i, l := range []util.Uint256{a, b, a, b} {
			require.NoError(t, tr.UpdateLeafHash(uint64(i), l))
			ref.set(i, l)
		}
		require.Equal(t, 2, refCount(t, s, p))

		require.NoError(t, tr.UpdateLeafHash(0, testLeaf(3)))
		ref.set(0, testLeaf(3))
		require.Equal(t, 1, refCount(t, s, p))
		_, err := s.Get(p.BytesBE())
		require.NoError(t, err)
		checkTree(t, tr, ref)

		require.NoError(t, tr.UpdateLeafHash(3, testLeaf(4)))
		ref.set(3, testLeaf(4))
		require.Equal(t, 0, refCount(t, s, p))
		_, err = s.Get(p.BytesBE())
		require.ErrorIs(t, err, storage.ErrKeyNotFound)
		checkTree(t, tr, ref)
	})
	t.Run("collapsed subtree", func(t *testing.T) {
		tr, s := newRefCountTree(t, 3)
		ref := newRefTree(3, ZeroElement)
		leaves := testLeaves(0, 4)
		insert(t, tr, 0, leaves)
		ref.set(0, leaves...)
		blobRoot := sha.Compress(sha.Compress(leaves[0], leaves[1]), sha.Compress(leaves[2], leaves[3]))
		require.Equal(t, 1, refCount(t, s, blobRoot))

		require.NoError(t, tr.UpdateLeafHash(1, testLeaf(100)))
		ref.set(1, testLeaf(100))
		_, err := s.Get(blobRoot.BytesBE())
		require.ErrorIs(t, err, storage.ErrKeyNotFound)
		// Untouched half got a record of its own.
		require.Equal(t, 1, refCount(t, s, sha.Compress(leaves[2], leaves[3])))
		checkTree(t, tr, ref)
	})
	t.Run("reload", func(t *testing.T) {
		tr, s := newRefCountTree(t, 3)
		require.NoError(t, tr.UpdateLeafHash(2, testLeaf(2)))
		cfg := newTestConfig(s)
		cfg.Retention = RetentionRefCount
		loaded, err := Load("notes", cfg)
		require.NoError(t, err)
		require.Equal(t, tr.Root(), loaded.Root())
	})
}

func TestTreeParamsMismatch(t *testing.T) {
	s := storage.NewMemoryStore()
	cfg := newTestConfig(s)
	cfg.InitialLeaf = testLeaf(777)
	tr, err := New("notes", 3, cfg)
	require.NoError(t, err)
	require.NoError(t, tr.UpdateLeafHash(0, testLeaf(0)))

	data, err := s.Get(storage.DataTreeParams.AppendKey([]byte("notes")))
	require.NoError(t, err)
	require.Equal(t, append(testLeaf(777).BytesBE(), tr.ZeroHash(3).BytesBE()...), data)

	t.Run("initial leaf", func(t *testing.T) {
		_, err := Load("notes", newTestConfig(s))
		require.ErrorIs(t, err, ErrInitialLeafMismatch)
		_, err = Open("notes", 3, newTestConfig(s))
		require.ErrorIs(t, err, ErrInitialLeafMismatch)
	})
	t.Run("hasher", func(t *testing.T) {
		other := cfg
		other.Hasher = hash.NewSequentialHasher(hash.CompressorFunc(hash.Keccak256Compress))
		_, err := Load("notes", other)
		require.ErrorIs(t, err, ErrHasherMismatch)
	})
	t.Run("parallel hasher matches", func(t *testing.T) {
		other := cfg
		other.Hasher = hash.NewParallelHasher(sha, 4)
		loaded, err := Load("notes", other)
		require.NoError(t, err)
		require.NoError(t, loaded.UpdateLeafHash(5, testLeaf(5)))

		ref := newRefTree(3, testLeaf(777))
		ref.set(0, testLeaf(0))
		ref.set(5, testLeaf(5))
		checkTree(t, loaded, ref)
	})
	t.Run("sync", func(t *testing.T) {
		reader, err := Load("notes", cfg)
		require.NoError(t, err)
		// Tree is recreated with another initial leaf.
		_, err = New("notes", 3, newTestConfig(s))
		require.NoError(t, err)
		require.ErrorIs(t, reader.SyncFromDB(), ErrInitialLeafMismatch)
	})
	t.Run("missing", func(t *testing.T) {
		require.NoError(t, s.Delete(storage.DataTreeParams.AppendKey([]byte("notes"))))
		_, err := Load("notes", newTestConfig(s))
		require.ErrorIs(t, err, ErrInvalidMetadata)
	})
}
