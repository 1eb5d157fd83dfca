package merkle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/util"
	"go.uber.org/zap"
)

// RetentionPolicy defines the lifetime of node records replaced by updates.
type RetentionPolicy string

const (
	// RetentionKeep never deletes node records, identical subtrees can be
	// shared freely. It's the default policy.
	RetentionKeep RetentionPolicy = "keep"
	// RetentionRefCount counts tree positions referencing every node record
	// and deletes records no longer referenced. Counters are stored under
	// storage.DataRefCount prefix.
	RetentionRefCount RetentionPolicy = "refcount"
)

// IsValid checks whether the policy is known, empty policy is treated as
// RetentionKeep.
func (p RetentionPolicy) IsValid() bool {
	switch p {
	case "", RetentionKeep, RetentionRefCount:
		return true
	default:
		return false
	}
}

func (p RetentionPolicy) orDefault() RetentionPolicy {
	if p == "" {
		return RetentionKeep
	}
	return p
}

// checkRetention compares the policy with the one the DB was created with.
// It returns true if the DB has no policy recorded yet.
func checkRetention(s storage.Store, p RetentionPolicy) (bool, error) {
	data, err := s.Get(storage.DataRetention.Bytes())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to get retention policy: %w", err)
	}
	if RetentionPolicy(data) != p {
		return false, fmt.Errorf("%w: DB uses %q, %q is requested", ErrRetentionMismatch, string(data), p)
	}
	return false, nil
}

// mutation collects node changes of a single tree update to be written in
// one storage batch.
type mutation struct {
	batch storage.Batch
	// refs holds reference counter deltas, nil unless refcounting is enabled.
	refs map[util.Uint256]int
	// blobs are collapsed subtrees written by this mutation.
	blobs map[util.Uint256]struct{}
}

func (t *Tree) newMutation() *mutation {
	m := &mutation{
		batch: t.store.NewBatch(),
		blobs: make(map[util.Uint256]struct{}),
	}
	if t.retention == RetentionRefCount {
		m.refs = make(map[util.Uint256]int)
	}
	return m
}

func (m *mutation) addRef(h util.Uint256) {
	if m.refs != nil {
		m.refs[h]++
	}
}

// release drops a reference to the node record replaced at some position.
func (m *mutation) release(h util.Uint256) {
	if m.refs != nil {
		m.refs[h]--
	}
}

// putPair stores a pair node at the given height. Zero hashes are never
// stored and existing collapsed subtrees are not replaced by pair nodes as
// they contain the same children and more.
func (t *Tree) putPair(m *mutation, h util.Uint256, height int, left, right util.Uint256) error {
	if h == t.zeros[height] {
		return nil
	}
	m.addRef(h)
	if _, ok := m.blobs[h]; ok {
		return nil
	}
	if height > 1 {
		size, err := t.recordSize(h)
		if err != nil {
			return err
		}
		if size > PairSize {
			return nil
		}
	}
	data := make([]byte, PairSize)
	copy(data, left[:])
	copy(data[util.Uint256Size:], right[:])
	m.batch.Put(h.BytesBE(), data)
	return nil
}

// putBlob stores a collapsed subtree of the given height.
func (t *Tree) putBlob(m *mutation, h util.Uint256, height int, data []byte) {
	if h == t.zeros[height] {
		return
	}
	m.addRef(h)
	m.blobs[h] = struct{}{}
	m.batch.Put(h.BytesBE(), data)
}

// commit writes the mutation along with the new metadata record and updates
// in-memory tree state if successful.
func (t *Tree) commit(m *mutation, root util.Uint256, size uint64) error {
	md, err := newMetadata(root, t.depth, size)
	if err != nil {
		return err
	}
	if err := t.foldRefs(m); err != nil {
		return err
	}
	m.batch.Put([]byte(t.name), md.Bytes())
	if err := m.batch.Write(); err != nil {
		return fmt.Errorf("failed to commit tree %s: %w", t.name, err)
	}
	t.root, t.size = root, size
	updateTreeSizeMetric(t.name, size)
	return nil
}

// foldRefs applies reference counter deltas, nodes without references are
// deleted with their counters.
func (t *Tree) foldRefs(m *mutation) error {
	var deleted int
	for h, delta := range m.refs {
		if delta == 0 {
			continue
		}
		var (
			cnt int64
			key = storage.DataRefCount.AppendKey(h.BytesBE())
		)
		data, err := t.store.Get(key)
		switch {
		case err == nil:
			if len(data) != 4 {
				return fmt.Errorf("%w: reference counter of %s has length %d", ErrCorruptedNode, h.StringBE(), len(data))
			}
			cnt = int64(binary.LittleEndian.Uint32(data))
		case errors.Is(err, storage.ErrKeyNotFound):
		default:
			return fmt.Errorf("failed to get reference counter: %w", err)
		}
		cnt += int64(delta)
		if cnt <= 0 {
			m.batch.Delete(h.BytesBE())
			m.batch.Delete(key)
			deleted++
			continue
		}
		data = make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(cnt))
		m.batch.Put(key, data)
	}
	if deleted != 0 {
		t.log.Debug("unreferenced nodes removed", zap.String("tree", t.name), zap.Int("count", deleted))
		addRemovedNodesMetric(deleted)
	}
	return nil
}
