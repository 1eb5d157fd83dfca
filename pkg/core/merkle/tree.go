/*
Package merkle implements a persistent fixed-depth Merkle tree optimized for
appending leaves. Nodes are content-addressed records in a key-value store,
dense power-of-two aligned leaf batches are stored as single collapsed subtree
records.
*/
package merkle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
	"go.uber.org/zap"
)

// MaxDepth is the maximum supported tree depth.
const MaxDepth = 32

// ZeroElement is the default value of empty leaves.
var ZeroElement util.Uint256

// Config contains tree dependencies and settings.
type Config struct {
	// Store keeps tree nodes and metadata, it's mandatory.
	Store storage.Store
	// Hasher is used for all node hashing, sequential SHA-256 is used if
	// not set.
	Hasher hash.Hasher
	// Log is the logger, no logging is performed if not set.
	Log *zap.Logger
	// Retention is the node retention policy, RetentionKeep by default.
	// All trees sharing the same Store must use the same policy.
	Retention RetentionPolicy
	// InitialLeaf is the value of empty leaves, ZeroElement by default.
	InitialLeaf util.Uint256
}

// Tree is a fixed-depth Merkle tree. It's safe for concurrent use, all
// mutations are serialized.
type Tree struct {
	lock sync.RWMutex

	name  string
	depth int
	root  util.Uint256
	size  uint64

	store     storage.Store
	hasher    hash.Hasher
	log       *zap.Logger
	retention RetentionPolicy
	// zeros[h] is the hash of an empty subtree of height h.
	zeros []util.Uint256
}

func newTree(name string, depth int, cfg Config) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrBadDepth, depth)
	}
	if len(name) == 0 {
		return nil, errors.New("empty tree name")
	}
	switch p := storage.KeyPrefix(name[0]); p {
	case storage.DataRefCount, storage.DataRetention, storage.DataTreeParams:
		return nil, fmt.Errorf("tree name %q starts with reserved prefix 0x%02x", name, byte(p))
	}
	if cfg.Store == nil {
		return nil, errors.New("no store provided")
	}
	if !cfg.Retention.IsValid() {
		return nil, fmt.Errorf("unknown retention policy %q", cfg.Retention)
	}
	t := &Tree{
		name:      name,
		depth:     depth,
		store:     cfg.Store,
		hasher:    cfg.Hasher,
		log:       cfg.Log,
		retention: cfg.Retention.orDefault(),
	}
	if t.hasher == nil {
		t.hasher = hash.NewSequentialHasher(hash.CompressorFunc(hash.Sha256Compress))
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	t.zeros = zeroHashes(t.hasher, depth, cfg.InitialLeaf)
	return t, nil
}

// zeroHashes computes the hashes of empty subtrees of height 0 to depth.
func zeroHashes(c hash.Compressor, depth int, leaf util.Uint256) []util.Uint256 {
	zeros := make([]util.Uint256, depth+1)
	zeros[0] = leaf
	for h := 1; h <= depth; h++ {
		zeros[h] = c.Compress(zeros[h-1], zeros[h-1])
	}
	return zeros
}

// New creates an empty tree with the given name and depth and immediately
// writes its metadata to the store. Any existing tree with the same name is
// replaced.
func New(name string, depth int, cfg Config) (*Tree, error) {
	t, err := newTree(name, depth, cfg)
	if err != nil {
		return nil, err
	}
	missing, err := checkRetention(t.store, t.retention)
	if err != nil {
		return nil, err
	}
	m := t.newMutation()
	if missing {
		m.batch.Put(storage.DataRetention.Bytes(), []byte(t.retention))
	}
	t.putParams(m)
	if err := t.commit(m, t.zeros[depth], 0); err != nil {
		return nil, err
	}
	t.log.Info("tree created",
		zap.String("name", name),
		zap.Int("depth", depth),
		zap.Stringer("root", t.root))
	return t, nil
}

// Load restores the tree with the given name from the store. ErrTreeNotFound
// is returned if there is no such tree, ErrInitialLeafMismatch and
// ErrHasherMismatch if the tree was created with a different configuration.
func Load(name string, cfg Config) (*Tree, error) {
	md, err := getMetadata(cfg.Store, name)
	if err != nil {
		return nil, err
	}
	t, err := newTree(name, int(md.depth), cfg)
	if err != nil {
		return nil, err
	}
	missing, err := checkRetention(t.store, t.retention)
	if err != nil {
		return nil, err
	}
	if missing && t.retention != RetentionKeep {
		return nil, fmt.Errorf("%w: DB has no policy recorded, %q is requested", ErrRetentionMismatch, t.retention)
	}
	if err := t.checkParams(); err != nil {
		return nil, err
	}
	t.root, t.size = md.root, uint64(md.size)
	updateTreeSizeMetric(name, t.size)
	t.log.Info("tree loaded",
		zap.String("name", name),
		zap.Int("depth", t.depth),
		zap.Uint64("size", t.size),
		zap.Stringer("root", t.root))
	return t, nil
}

// Open loads the tree with the given name or creates a new one if it doesn't
// exist. Existing tree must have the same depth.
func Open(name string, depth int, cfg Config) (*Tree, error) {
	t, err := Load(name, cfg)
	if errors.Is(err, ErrTreeNotFound) {
		return New(name, depth, cfg)
	}
	if err != nil {
		return nil, err
	}
	if t.depth != depth {
		return nil, fmt.Errorf("%w: tree %s has depth %d, %d requested", ErrBadDepth, name, t.depth, depth)
	}
	return t, nil
}

func getMetadata(s storage.Store, name string) (*metadata, error) {
	if s == nil {
		return nil, errors.New("no store provided")
	}
	data, err := s.Get([]byte(name))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTreeNotFound, name)
		}
		return nil, fmt.Errorf("failed to get tree metadata: %w", err)
	}
	return decodeMetadata(data)
}

// SyncFromDB re-reads the tree root and size from the store.
func (t *Tree) SyncFromDB() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	md, err := getMetadata(t.store, t.name)
	if err != nil {
		return err
	}
	if int(md.depth) != t.depth {
		return fmt.Errorf("%w: depth changed from %d to %d", ErrInvalidMetadata, t.depth, md.depth)
	}
	if err := t.checkParams(); err != nil {
		return err
	}
	t.root, t.size = md.root, uint64(md.size)
	updateTreeSizeMetric(t.name, t.size)
	return nil
}

// Name returns the tree name.
func (t *Tree) Name() string {
	return t.name
}

// Depth returns the tree depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Root returns the current root hash.
func (t *Tree) Root() util.Uint256 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.root
}

// Size returns the current tree size, i.e. the high-water mark of updated
// leaf indices.
func (t *Tree) Size() uint64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.size
}

// ZeroHash returns the hash of an empty subtree of the given height, height
// 0 is the initial leaf value. It panics if height is outside of [0, Depth()].
func (t *Tree) ZeroHash(height int) util.Uint256 {
	if height < 0 || height > t.depth {
		panic(fmt.Sprintf("zero hash height %d is out of [0, %d]", height, t.depth))
	}
	return t.zeros[height]
}

// Hasher returns the hasher used by the tree.
func (t *Tree) Hasher() hash.Hasher {
	return t.hasher
}

// capacity returns the number of leaves of the tree.
func (t *Tree) capacity() uint64 {
	return uint64(1) << uint(t.depth)
}

// GetHashPath returns the authentication path of the leaf with the given
// index.
func (t *Tree) GetHashPath(index uint64) (HashPath, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if index >= t.capacity() {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	var (
		path = make(HashPath, t.depth)
		cur  = t.root
		view *blobView
	)
	for height := t.depth; height >= 1; height-- {
		n, err := t.getNode(cur, height, view)
		if err != nil {
			return nil, err
		}
		path[height-1] = Pair{n.left, n.right}
		right := (index>>uint(height-1))&1 == 1
		if right {
			cur = n.right
		} else {
			cur = n.left
		}
		view = n.childView(right)
	}
	return path, nil
}
