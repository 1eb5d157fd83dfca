package merkle

import (
	"fmt"
	"math"

	"github.com/nspcc-dev/notetree/pkg/io"
	"github.com/nspcc-dev/notetree/pkg/util"
)

// MetadataSize is the length of serialized tree metadata.
const MetadataSize = util.Uint256Size + 4 + 4

// metadata is the persisted tree state stored under the tree name.
type metadata struct {
	root  util.Uint256
	depth uint32
	size  uint32
}

func newMetadata(root util.Uint256, depth int, size uint64) (*metadata, error) {
	if size > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrSizeOverflow, size)
	}
	return &metadata{
		root:  root,
		depth: uint32(depth),
		size:  uint32(size),
	}, nil
}

// EncodeBinary implements io.Serializable.
func (m *metadata) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(m.root[:])
	w.WriteU32LE(m.depth)
	w.WriteU32LE(m.size)
}

// DecodeBinary implements io.Serializable.
func (m *metadata) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(m.root[:])
	m.depth = r.ReadU32LE()
	m.size = r.ReadU32LE()
}

// Bytes returns serialized metadata record.
func (m *metadata) Bytes() []byte {
	w := io.NewBufBinWriter()
	w.Grow(MetadataSize)
	m.EncodeBinary(w.BinWriter)
	return w.Bytes()
}

func decodeMetadata(data []byte) (*metadata, error) {
	if len(data) != MetadataSize {
		return nil, fmt.Errorf("%w: record length %d", ErrInvalidMetadata, len(data))
	}
	m := new(metadata)
	r := io.NewBinReaderFromBuf(data)
	m.DecodeBinary(r)
	if r.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, r.Err)
	}
	if m.depth < 1 || m.depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d", ErrInvalidMetadata, m.depth)
	}
	return m, nil
}
