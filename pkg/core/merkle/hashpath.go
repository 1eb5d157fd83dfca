package merkle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/crypto/hash"
	"github.com/nspcc-dev/notetree/pkg/io"
	"github.com/nspcc-dev/notetree/pkg/util"
)

// PairSize is the length of serialized Pair.
const PairSize = 2 * util.Uint256Size

// Pair is a pair of sibling hashes, left one first.
type Pair [2]util.Uint256

// HashPath is a Merkle authentication path of a leaf. Entry i holds the
// children of the node at height i+1 on the way from the root to the leaf,
// so the first entry contains the leaf itself and its sibling.
type HashPath []Pair

var _ io.Serializable = (*HashPath)(nil)

var (
	errTooManyPairs = fmt.Errorf("hash path is longer than %d", MaxDepth)
	errPathTooShort = errors.New("not enough data for the declared hash path length")
)

// EncodeBinary implements io.Serializable. The format is uint32 BE count
// followed by pairs.
func (p HashPath) EncodeBinary(w *io.BinWriter) {
	w.WriteU32BE(uint32(len(p)))
	for i := range p {
		w.WriteBytes(p[i][0][:])
		w.WriteBytes(p[i][1][:])
	}
}

// DecodeBinary implements io.Serializable.
func (p *HashPath) DecodeBinary(r *io.BinReader) {
	n := r.ReadU32BE()
	if r.Err != nil {
		return
	}
	if n > MaxDepth {
		r.Err = errTooManyPairs
		return
	}
	if l := r.Len(); l >= 0 && l < int(n)*PairSize {
		r.Err = fmt.Errorf("%w: %d pairs, %d bytes left", errPathTooShort, n, l)
		return
	}
	res := make(HashPath, n)
	for i := range res {
		r.ReadBytes(res[i][0][:])
		r.ReadBytes(res[i][1][:])
	}
	if r.Err != nil {
		return
	}
	*p = res
}

// Bytes returns serialized hash path.
func (p HashPath) Bytes() []byte {
	w := io.NewBufBinWriter()
	w.Grow(4 + len(p)*PairSize)
	p.EncodeBinary(w.BinWriter)
	return w.Bytes()
}

// NewHashPathFromBytes decodes hash path from its binary representation.
// Trailing data is not allowed.
func NewHashPathFromBytes(b []byte) (HashPath, error) {
	var p HashPath
	r := io.NewBinReaderFromBuf(b)
	p.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d bytes of trailing data", r.Len())
	}
	return p, nil
}

// MarshalJSON implements json.Marshaler interface.
func (p HashPath) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Pair(p))
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (p *HashPath) UnmarshalJSON(data []byte) error {
	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	if len(pairs) > MaxDepth {
		return errTooManyPairs
	}
	*p = pairs
	return nil
}

// ComputeRoot folds the path starting from the leaf placed at the given
// index. Only sibling hashes are used, the leaf-side entries of the path are
// ignored.
func (p HashPath) ComputeRoot(index uint64, leaf util.Uint256, c hash.Compressor) util.Uint256 {
	h := leaf
	for i := range p {
		if (index>>uint(i))&1 == 0 {
			h = c.Compress(h, p[i][1])
		} else {
			h = c.Compress(p[i][0], h)
		}
	}
	return h
}

// Verify checks that the path proves the leaf at the given index against
// the root. Leaf-side entries must match the hashes computed from the leaf.
func (p HashPath) Verify(root util.Uint256, index uint64, leaf util.Uint256, c hash.Compressor) bool {
	if len(p) < 64 && index>>uint(len(p)) != 0 {
		return false
	}
	h := leaf
	for i := range p {
		bit := (index >> uint(i)) & 1
		if p[i][bit] != h {
			return false
		}
		h = c.Compress(p[i][0], p[i][1])
	}
	return h == root
}
