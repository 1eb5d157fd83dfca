package merkle

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/storage"
	"github.com/nspcc-dev/notetree/pkg/io"
	"github.com/nspcc-dev/notetree/pkg/util"
)

// paramsSize is the length of serialized tree parameters.
const paramsSize = 2 * util.Uint256Size

// treeParams pins the values every tree hash depends on: the initial leaf and
// the empty tree root, the latter being a fingerprint of the hasher. They're
// stored under storage.DataTreeParams prefix with the tree name.
type treeParams struct {
	leaf  util.Uint256
	empty util.Uint256
}

// EncodeBinary implements io.Serializable.
func (p *treeParams) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(p.leaf[:])
	w.WriteBytes(p.empty[:])
}

// DecodeBinary implements io.Serializable.
func (p *treeParams) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(p.leaf[:])
	r.ReadBytes(p.empty[:])
}

func paramsKey(name string) []byte {
	return storage.DataTreeParams.AppendKey([]byte(name))
}

func (t *Tree) params() *treeParams {
	return &treeParams{leaf: t.zeros[0], empty: t.zeros[t.depth]}
}

// putParams adds tree parameters to the mutation.
func (t *Tree) putParams(m *mutation) {
	w := io.NewBufBinWriter()
	w.Grow(paramsSize)
	t.params().EncodeBinary(w.BinWriter)
	m.batch.Put(paramsKey(t.name), w.Bytes())
}

// checkParams compares stored tree parameters with the configured ones.
func (t *Tree) checkParams() error {
	data, err := t.store.Get(paramsKey(t.name))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("%w: no parameters stored for tree %s", ErrInvalidMetadata, t.name)
		}
		return fmt.Errorf("failed to get tree parameters: %w", err)
	}
	if len(data) != paramsSize {
		return fmt.Errorf("%w: parameters record length %d", ErrInvalidMetadata, len(data))
	}
	stored := new(treeParams)
	stored.DecodeBinary(io.NewBinReaderFromBuf(data))

	cur := t.params()
	if stored.leaf != cur.leaf {
		return fmt.Errorf("%w: tree %s uses 0x%s, 0x%s is configured",
			ErrInitialLeafMismatch, t.name, stored.leaf.StringBE(), cur.leaf.StringBE())
	}
	if stored.empty != cur.empty {
		return fmt.Errorf("%w: tree %s has empty root 0x%s, configured hasher gives 0x%s",
			ErrHasherMismatch, t.name, stored.empty.StringBE(), cur.empty.StringBE())
	}
	return nil
}
