package merkle

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/util"
	"go.uber.org/zap"
)

// leafOf maps element value to the leaf hash, all-zero value denotes an
// empty leaf.
func (t *Tree) leafOf(value util.Uint256) util.Uint256 {
	if value.IsZero() {
		return t.zeros[0]
	}
	return value
}

// UpdateElement sets the leaf with the given index to the element value.
func (t *Tree) UpdateElement(index uint64, value util.Uint256) error {
	return t.UpdateLeafHash(index, t.leafOf(value))
}

// UpdateElements sets consecutive leaves starting from the given index to
// the element values, see UpdateLeafHashes.
func (t *Tree) UpdateElements(ctx context.Context, index uint64, values []util.Uint256) error {
	leaves := make([]util.Uint256, len(values))
	for i := range values {
		leaves[i] = t.leafOf(values[i])
	}
	return t.UpdateLeafHashes(ctx, index, leaves)
}

// UpdateLeafHash sets the leaf with the given index. Tree size becomes at
// least index+1.
func (t *Tree) UpdateLeafHash(index uint64, leaf util.Uint256) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if index >= t.capacity() {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	var (
		frames = make([]node, t.depth+1)
		cur    = t.root
		view   *blobView
	)
	for height := t.depth; height >= 1; height-- {
		n, err := t.getNode(cur, height, view)
		if err != nil {
			return err
		}
		frames[height] = n
		right := (index>>uint(height-1))&1 == 1
		if right {
			cur = n.right
		} else {
			cur = n.left
		}
		view = n.childView(right)
	}

	var (
		root = t.root
		size = t.size
		m    = t.newMutation()
		err  error
	)
	if index+1 > size {
		size = index + 1
	}
	if cur != leaf {
		root, err = t.ascend(m, frames, 1, index, leaf)
		if err != nil {
			return err
		}
	}
	if root == t.root && size == t.size {
		return nil
	}
	if err := t.commit(m, root, size); err != nil {
		return err
	}
	leafUpdates.Inc()
	t.log.Debug("leaf updated",
		zap.String("tree", t.name),
		zap.Uint64("index", index),
		zap.Stringer("root", root))
	return nil
}

// ascend recomputes the path from the given height up to the root after the
// node at from-1 height on the path to the leaf with the given index was
// changed to h. frames contain the original nodes on the path indexed by
// height. It returns the new root.
func (t *Tree) ascend(m *mutation, frames []node, from int, index uint64, h util.Uint256) (util.Uint256, error) {
	for height := from; height <= t.depth; height++ {
		var (
			n           = &frames[height]
			right       = (index>>uint(height-1))&1 == 1
			left, rhash = n.left, n.right
			sibling     util.Uint256
		)
		if right {
			rhash, sibling = h, n.left
		} else {
			left, sibling = h, n.right
		}
		// Collapsed subtree record is replaced by pair nodes on the path,
		// untouched siblings need records of their own.
		if n.view != nil && height > 1 {
			t.putBlob(m, sibling, height-1, n.view.child(!right).subtree())
		}
		h = t.hasher.Compress(left, rhash)
		if h == n.hash {
			continue
		}
		if err := t.putPair(m, h, height, left, rhash); err != nil {
			return util.Uint256{}, err
		}
		if n.stored {
			m.release(n.hash)
		}
	}
	return h, nil
}

// UpdateLeafHashes sets consecutive leaves starting from the given index.
// Leaves are split into the largest power-of-two chunks aligned to their
// size, every chunk is hashed into a dense subtree stored as a single
// collapsed record and committed separately. After every chunk tree size is
// set to the index following it. Replacing a collapsed subtree with
// different contents fails with ErrSubtreeConflict, chunks committed before
// the failing one stay in place.
func (t *Tree) UpdateLeafHashes(ctx context.Context, index uint64, hashes []util.Uint256) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(hashes) == 0 {
		return nil
	}
	if index >= t.capacity() || uint64(len(hashes)) > t.capacity()-index {
		return fmt.Errorf("%w: %d leaves at %d", ErrIndexOutOfRange, len(hashes), index)
	}
	for len(hashes) > 0 {
		chunk := chunkSize(index, len(hashes))
		if err := t.insertChunk(ctx, index, hashes[:chunk]); err != nil {
			return err
		}
		index += uint64(chunk)
		hashes = hashes[chunk:]
	}
	return nil
}

// chunkSize returns the largest power of two not exceeding n that index is
// aligned to.
func chunkSize(index uint64, n int) int {
	c := 1 << hash.Log2(n)
	for index%uint64(c) != 0 {
		c >>= 1
	}
	return c
}

func (t *Tree) insertChunk(ctx context.Context, index uint64, leaves []util.Uint256) error {
	hashes, err := t.hasher.HashToTree(ctx, leaves)
	if err != nil {
		return fmt.Errorf("failed to hash %d leaves at %d: %w", len(leaves), index, err)
	}
	var (
		d         = hash.Log2(len(leaves))
		chunkRoot = hashes[len(hashes)-1]
		blob      = make([]byte, 0, (len(hashes)-1)*util.Uint256Size)
		m         = t.newMutation()
		size      = index + uint64(len(leaves))
	)
	for _, h := range hashes[:len(hashes)-1] {
		blob = append(blob, h[:]...)
	}
	root, err := t.splice(m, index, d, chunkRoot, blob)
	if err != nil {
		return err
	}
	observeChunk(len(leaves))
	if root == t.root && size == t.size {
		return nil
	}
	if err := t.commit(m, root, size); err != nil {
		return err
	}
	t.log.Debug("subtree inserted",
		zap.String("tree", t.name),
		zap.Uint64("index", index),
		zap.Int("leaves", len(leaves)),
		zap.Stringer("root", root))
	return nil
}

// splice places the dense subtree of height d with the given root and
// collapsed record over the leaves starting from index. It returns the new
// tree root.
func (t *Tree) splice(m *mutation, index uint64, d int, chunkRoot util.Uint256, blob []byte) (util.Uint256, error) {
	var (
		frames     = make([]node, t.depth+1)
		cur        = t.root
		emptyChunk = chunkRoot == t.zeros[d]
	)
	for height := t.depth; height > d; height-- {
		if emptyChunk && cur == t.zeros[height] {
			return t.root, nil
		}
		n, err := t.getNode(cur, height, nil)
		if err != nil {
			return util.Uint256{}, err
		}
		if n.view != nil {
			// Target subtree is a part of already inserted one.
			pos := int(index>>uint(d)) & ((1 << (n.view.depth - d)) - 1)
			if n.view.hashAt(d, pos) == chunkRoot {
				return t.root, nil
			}
			return util.Uint256{}, t.conflict(index, d)
		}
		frames[height] = n
		if (index>>uint(height-1))&1 == 1 {
			cur = n.right
		} else {
			cur = n.left
		}
	}
	if cur == chunkRoot {
		return t.root, nil
	}
	var stored bool
	if d >= 1 && cur != t.zeros[d] {
		size, err := t.recordSize(cur)
		if err != nil {
			return util.Uint256{}, err
		}
		if size > PairSize {
			return util.Uint256{}, t.conflict(index, d)
		}
		stored = size != 0
	}
	if d >= 1 {
		t.putBlob(m, chunkRoot, d, blob)
	}
	if stored {
		m.release(cur)
	}
	if d == t.depth {
		return chunkRoot, nil
	}
	return t.ascend(m, frames, d+1, index, chunkRoot)
}

func (t *Tree) conflict(index uint64, d int) error {
	subtreeConflicts.Inc()
	t.log.Warn("subtree conflict",
		zap.String("tree", t.name),
		zap.Uint64("index", index),
		zap.Int("height", d))
	return fmt.Errorf("%w: %d leaves at %d", ErrSubtreeConflict, 1<<uint(d), index)
}
