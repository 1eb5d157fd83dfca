package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// CachedStore is a read-through LRU cache over another Store. Successful
// reads are cached, writes go to the underlying Store first and then update
// the cache. Misses are not cached.
type CachedStore struct {
	Store

	cache *lru.Cache
}

// NewCachedStore wraps ps into a cache holding up to size records.
func NewCachedStore(ps Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &CachedStore{
		Store: ps,
		cache: cache,
	}, nil
}

// Get implements the Store interface.
func (s *CachedStore) Get(key []byte) ([]byte, error) {
	k := string(key)
	if v, ok := s.cache.Get(k); ok {
		return copyValue(v.([]byte)), nil
	}
	val, err := s.Store.Get(key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(k, val)
	return copyValue(val), nil
}

// Put implements the Store interface.
func (s *CachedStore) Put(key, value []byte) error {
	if err := s.Store.Put(key, value); err != nil {
		s.cache.Remove(string(key))
		return err
	}
	s.cache.Add(string(key), copyValue(value))
	return nil
}

// Delete implements the Store interface.
func (s *CachedStore) Delete(key []byte) error {
	s.cache.Remove(string(key))
	return s.Store.Delete(key)
}

// PutChangeSet implements the Store interface. Cached values of all changed
// keys are dropped, so a failed write never leaves stale data in the cache.
func (s *CachedStore) PutChangeSet(changes map[string][]byte) error {
	for k := range changes {
		s.cache.Remove(k)
	}
	return s.Store.PutChangeSet(changes)
}

// NewBatch implements the Store interface.
func (s *CachedStore) NewBatch() Batch {
	return NewMemBatch(s)
}

// Close implements the Store interface.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.Store.Close()
}
