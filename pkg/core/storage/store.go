package storage

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/storage/dbconfig"
)

// KeyPrefix constants. Tree nodes are keyed by their raw 32-byte hashes and
// tree metadata by the tree name, prefixed keys are used for auxiliary data
// only.
const (
	// DataRefCount is used for node reference counters identified by the
	// node hash.
	DataRefCount KeyPrefix = 0x01
	// DataRetention stores the node retention policy the DB was created with.
	DataRetention KeyPrefix = 0x02
	// DataTreeParams is used for per-tree hashing parameters identified by
	// the tree name.
	DataTreeParams KeyPrefix = 0x03
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

type (
	// Store is the underlying KV backend for the tree data.
	Store interface {
		// Get returns the value stored under the key or ErrKeyNotFound. Any
		// other error is a storage failure. The value returned is owned by
		// the caller.
		Get([]byte) ([]byte, error)
		Put(k, v []byte) error
		Delete(k []byte) error
		// PutChangeSet atomically applies the set of changes, nil value
		// means deletion.
		PutChangeSet(changes map[string][]byte) error
		// NewBatch returns a new Batch applied to this Store on Write.
		NewBatch() Batch
		Close() error
	}

	// Batch accumulates changes to be written atomically. Later changes of
	// the same key override earlier ones. Batch is not thread-safe.
	Batch interface {
		Put(k, v []byte)
		Delete(k []byte)
		Len() int
		Write() error
	}

	// KeyPrefix is a constant byte added as a prefix for each auxiliary key
	// stored.
	KeyPrefix uint8
)

// Bytes returns the bytes representation of KeyPrefix.
func (k KeyPrefix) Bytes() []byte {
	return []byte{byte(k)}
}

// AppendKey returns a new key made of the prefix and the given suffix.
func (k KeyPrefix) AppendKey(suffix []byte) []byte {
	key := make([]byte, 1+len(suffix))
	key[0] = byte(k)
	copy(key[1:], suffix)
	return key
}

// copyValue returns a copy of v, so that callers of Get can't modify
// stored or cached data.
func copyValue(v []byte) []byte {
	res := make([]byte, len(v))
	copy(res, v)
	return res
}

// MemBatch is a Batch implementation collecting changes in memory and
// passing them to the Store's PutChangeSet on Write.
type MemBatch struct {
	store   Store
	changes map[string][]byte
}

// NewMemBatch creates a new batch for the given Store.
func NewMemBatch(s Store) *MemBatch {
	return &MemBatch{
		store:   s,
		changes: make(map[string][]byte),
	}
}

// Put implements the Batch interface.
func (b *MemBatch) Put(k, v []byte) {
	if v == nil {
		v = []byte{}
	}
	b.changes[string(k)] = v
}

// Delete implements the Batch interface.
func (b *MemBatch) Delete(k []byte) {
	b.changes[string(k)] = nil
}

// Len implements the Batch interface.
func (b *MemBatch) Len() int {
	return len(b.changes)
}

// Write implements the Batch interface. The batch is reset after successful
// write and can be reused.
func (b *MemBatch) Write() error {
	if len(b.changes) == 0 {
		return nil
	}
	if err := b.store.PutChangeSet(b.changes); err != nil {
		return err
	}
	b.changes = make(map[string][]byte)
	return nil
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(store, cfg.CacheSize)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = cached
	}
	return store, nil
}
