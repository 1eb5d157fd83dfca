package merkle

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/util"
	"go.uber.org/zap"
)

// Node records are stored under the node hash and come in two shapes. A pair
// node is the concatenation of its children hashes. A collapsed subtree (blob)
// of depth d keeps every hash of a dense subtree except the root in level
// order, starting from the leaf row and ending with the root's children. A
// depth-1 blob is a pair node.

// blobSize returns the length of a collapsed subtree record of depth d.
func blobSize(d int) int {
	return PairSize * ((1 << d) - 1)
}

// blobView addresses a node located in a collapsed subtree record. Blob
// levels match node heights: leaves are level 0 and the blob root (not stored
// in the record) is level depth.
type blobView struct {
	data  []byte
	depth int
	level int
	pos   int
}

// hashAt returns the hash at the given level and position of the blob.
func (b *blobView) hashAt(level, pos int) util.Uint256 {
	var (
		res util.Uint256
		idx = (1 << (b.depth + 1)) - (1 << (b.depth - level + 1)) + pos
	)
	copy(res[:], b.data[idx*util.Uint256Size:])
	return res
}

// children returns the children hashes of the viewed node.
func (b *blobView) children() (util.Uint256, util.Uint256) {
	return b.hashAt(b.level-1, 2*b.pos), b.hashAt(b.level-1, 2*b.pos+1)
}

// child returns the view of the left or right child, nil for leaves.
func (b *blobView) child(right bool) *blobView {
	if b.level <= 1 {
		return nil
	}
	pos := 2 * b.pos
	if right {
		pos++
	}
	return &blobView{data: b.data, depth: b.depth, level: b.level - 1, pos: pos}
}

// subtree returns the collapsed subtree record of the viewed node.
func (b *blobView) subtree() []byte {
	res := make([]byte, 0, blobSize(b.level))
	for k := 0; k < b.level; k++ {
		var (
			width = 1 << (b.level - k)
			start = (1 << (b.depth + 1)) - (1 << (b.depth - k + 1)) + b.pos*width
		)
		res = append(res, b.data[start*util.Uint256Size:(start+width)*util.Uint256Size]...)
	}
	return res
}

// node is a resolved internal node on a leaf path.
type node struct {
	hash   util.Uint256
	height int
	left   util.Uint256
	right  util.Uint256
	// view is set when node's children are taken from a collapsed subtree,
	// the node itself is either the blob root or located inside it.
	view *blobView
	// stored is set when the node has its own record.
	stored bool
}

func (n *node) childView(right bool) *blobView {
	if n.view == nil {
		return nil
	}
	return n.view.child(right)
}

// getNode resolves the node with the given hash at the given height (>= 1).
// view is the node position inside of the parent blob if any.
func (t *Tree) getNode(h util.Uint256, height int, view *blobView) (node, error) {
	n := node{hash: h, height: height}
	if view != nil {
		n.left, n.right = view.children()
		n.view = view
		return n, nil
	}
	if h == t.zeros[height] {
		n.left, n.right = t.zeros[height-1], t.zeros[height-1]
		return n, nil
	}
	data, err := t.store.Get(h.BytesBE())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			// Missing nodes are treated as empty subtrees.
			t.log.Debug("node not found", zap.Stringer("hash", h), zap.Int("height", height))
			n.left, n.right = t.zeros[height-1], t.zeros[height-1]
			return n, nil
		}
		return n, fmt.Errorf("failed to get node %s: %w", h.StringBE(), err)
	}
	n.stored = true
	switch {
	case len(data) == PairSize:
		copy(n.left[:], data)
		copy(n.right[:], data[util.Uint256Size:])
	case height > 1 && len(data) == blobSize(height):
		n.view = &blobView{data: data, depth: height, level: height}
		n.left, n.right = n.view.children()
	default:
		return n, fmt.Errorf("%w: %s at height %d has length %d", ErrCorruptedNode, h.StringBE(), height, len(data))
	}
	return n, nil
}

// recordSize returns the length of the node record stored under h, 0 if
// there is none.
func (t *Tree) recordSize(h util.Uint256) (int, error) {
	data, err := t.store.Get(h.BytesBE())
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get node %s: %w", h.StringBE(), err)
	}
	return len(data), nil
}
