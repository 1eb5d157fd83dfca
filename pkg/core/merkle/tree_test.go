package merkle

import (
	"path/filepath"
	"testing"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("bad depth", func(t *testing.T) {
		for _, depth := range []int{-1, 0, MaxDepth + 1} {
			_, err := New("notes", depth, newTestConfig(storage.NewMemoryStore()))
			require.ErrorIs(t, err, ErrBadDepth)
		}
	})
	t.Run("no store", func(t *testing.T) {
		_, err := New("notes", 4, Config{})
		require.Error(t, err)
	})
	t.Run("empty name", func(t *testing.T) {
		_, err := New("", 4, newTestConfig(storage.NewMemoryStore()))
		require.Error(t, err)
	})
	t.Run("reserved name", func(t *testing.T) {
		for _, name := range []string{"\x01notes", "\x02", "\x03notes"} {
			_, err := New(name, 4, newTestConfig(storage.NewMemoryStore()))
			require.Error(t, err)
		}
	})
	t.Run("unknown retention", func(t *testing.T) {
		cfg := newTestConfig(storage.NewMemoryStore())
		cfg.Retention = "forever"
		_, err := New("notes", 4, cfg)
		require.Error(t, err)
	})
	t.Run("fresh tree", func(t *testing.T) {
		tr, s := newTestTree(t, 4)
		require.Equal(t, "notes", tr.Name())
		require.Equal(t, 4, tr.Depth())
		require.Equal(t, uint64(0), tr.Size())
		require.Equal(t, tr.ZeroHash(4), tr.Root())

		// Metadata is written immediately.
		data, err := s.Get([]byte("notes"))
		require.NoError(t, err)
		require.Equal(t, MetadataSize, len(data))
		require.Equal(t, tr.Root().BytesBE(), data[:32])
		require.Equal(t, []byte{4, 0, 0, 0, 0, 0, 0, 0}, data[32:])
	})
	t.Run("defaults", func(t *testing.T) {
		tr, err := New("notes", 3, Config{Store: storage.NewMemoryStore()})
		require.NoError(t, err)
		require.Equal(t, newRefTree(3, ZeroElement).root(t), tr.Root())
	})
}

func TestZeroHashes(t *testing.T) {
	tr, _ := newTestTree(t, 8)
	require.Equal(t, ZeroElement, tr.ZeroHash(0))
	for h := 1; h <= 8; h++ {
		require.Equal(t, sha.Compress(tr.ZeroHash(h-1), tr.ZeroHash(h-1)), tr.ZeroHash(h))
	}

	require.PanicsWithValue(t, "zero hash height 9 is out of [0, 8]", func() { tr.ZeroHash(9) })
	require.PanicsWithValue(t, "zero hash height -1 is out of [0, 8]", func() { tr.ZeroHash(-1) })

	// Empty trees of the same depth are the same.
	other, _ := newTestTree(t, 8)
	require.Equal(t, tr.Root(), other.Root())

	t.Run("custom initial leaf", func(t *testing.T) {
		cfg := newTestConfig(storage.NewMemoryStore())
		cfg.InitialLeaf = testLeaf(100)
		tr, err := New("notes", 3, cfg)
		require.NoError(t, err)
		require.Equal(t, testLeaf(100), tr.ZeroHash(0))
		require.Equal(t, newRefTree(3, testLeaf(100)).root(t), tr.Root())
	})
}

func TestLoad(t *testing.T) {
	tr, s := newTestTree(t, 4)
	require.NoError(t, tr.UpdateLeafHash(3, testLeaf(3)))

	loaded, err := Load("notes", newTestConfig(s))
	require.NoError(t, err)
	require.Equal(t, tr.Root(), loaded.Root())
	require.Equal(t, tr.Size(), loaded.Size())
	require.Equal(t, tr.Depth(), loaded.Depth())

	_, err = Load("nullifiers", newTestConfig(s))
	require.ErrorIs(t, err, ErrTreeNotFound)

	require.NoError(t, s.Put([]byte("broken"), []byte{1, 2, 3}))
	_, err = Load("broken", newTestConfig(s))
	require.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestOpen(t *testing.T) {
	s := storage.NewMemoryStore()
	tr, err := Open("notes", 5, newTestConfig(s))
	require.NoError(t, err)
	require.Equal(t, 5, tr.Depth())
	require.NoError(t, tr.UpdateLeafHash(0, testLeaf(0)))

	reopened, err := Open("notes", 5, newTestConfig(s))
	require.NoError(t, err)
	require.Equal(t, tr.Root(), reopened.Root())
	require.Equal(t, uint64(1), reopened.Size())

	_, err = Open("notes", 6, newTestConfig(s))
	require.ErrorIs(t, err, ErrBadDepth)
}

func TestSyncFromDB(t *testing.T) {
	writer, s := newTestTree(t, 4)
	reader, err := Load("notes", newTestConfig(s))
	require.NoError(t, err)

	insert(t, writer, 0, testLeaves(0, 5))
	require.NotEqual(t, writer.Root(), reader.Root())

	require.NoError(t, reader.SyncFromDB())
	require.Equal(t, writer.Root(), reader.Root())
	require.Equal(t, uint64(5), reader.Size())
}

func TestPersistence(t *testing.T) {
	var (
		dir = t.TempDir()
		ref = newRefTree(6, ZeroElement)
	)
	open := func() storage.Store {
		s, err := storage.NewLevelDBStore(dbconfig.LevelDBOptions{DataDirectoryPath: filepath.Join(dir, "db")})
		require.NoError(t, err)
		return s
	}

	s := open()
	tr, err := New("notes", 6, newTestConfig(s))
	require.NoError(t, err)
	insert(t, tr, 0, testLeaves(0, 13))
	ref.set(0, testLeaves(0, 13)...)
	require.NoError(t, tr.UpdateLeafHash(40, testLeaf(40)))
	ref.set(40, testLeaf(40))
	require.NoError(t, s.Close())

	s = open()
	loaded, err := Load("notes", newTestConfig(s))
	require.NoError(t, err)
	require.Equal(t, uint64(41), loaded.Size())
	checkTree(t, loaded, ref)
	require.NoError(t, s.Close())
}

func TestGetHashPath(t *testing.T) {
	tr, _ := newTestTree(t, 3)

	t.Run("empty tree", func(t *testing.T) {
		path, err := tr.GetHashPath(5)
		require.NoError(t, err)
		for i, p := range path {
			require.Equal(t, Pair{tr.ZeroHash(i), tr.ZeroHash(i)}, p)
		}
	})
	t.Run("out of range", func(t *testing.T) {
		_, err := tr.GetHashPath(8)
		require.ErrorIs(t, err, ErrIndexOutOfRange)
	})
	t.Run("leaf pair first", func(t *testing.T) {
		require.NoError(t, tr.UpdateLeafHash(5, testLeaf(5)))
		path, err := tr.GetHashPath(5)
		require.NoError(t, err)
		require.Equal(t, Pair{tr.ZeroHash(0), testLeaf(5)}, path[0])
		require.Equal(t, tr.Root(), sha.Compress(path[2][0], path[2][1]))
	})
	t.Run("corrupted node", func(t *testing.T) {
		tr, s := newTestTree(t, 3)
		require.NoError(t, tr.UpdateLeafHash(0, testLeaf(0)))
		require.NoError(t, s.Put(tr.Root().BytesBE(), []byte{1, 2, 3}))
		_, err := tr.GetHashPath(0)
		require.ErrorIs(t, err, ErrCorruptedNode)
	})
}

func TestParallelHasherTree(t *testing.T) {
	cfg := Config{
		Store:  storage.NewMemoryStore(),
		Hasher: hash.NewParallelHasher(sha, 4),
	}
	tr, err := New("notes", 7, cfg)
	require.NoError(t, err)
	seq, _ := newTestTree(t, 7)

	leaves := testLeaves(0, 100)
	insert(t, tr, 3, leaves)
	insert(t, seq, 3, leaves)
	require.Equal(t, seq.Root(), tr.Root())

	ref := newRefTree(7, ZeroElement)
	ref.set(3, leaves...)
	checkTree(t, tr, ref)
}

func TestMetadata(t *testing.T) {
	_, err := newMetadata(util.Uint256{}, 32, 1<<32)
	require.ErrorIs(t, err, ErrSizeOverflow)

	md, err := newMetadata(testLeaf(1), 20, 12345)
	require.NoError(t, err)
	decoded, err := decodeMetadata(md.Bytes())
	require.NoError(t, err)
	require.Equal(t, md, decoded)

	data := md.Bytes()
	_, err = decodeMetadata(data[:MetadataSize-1])
	require.ErrorIs(t, err, ErrInvalidMetadata)

	data[32] = 33
	_, err = decodeMetadata(data)
	require.ErrorIs(t, err, ErrInvalidMetadata)
}
