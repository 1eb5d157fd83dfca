package io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mocks io.Writer that fails after the first write.
type badRW struct {
	calls int
}

func (w *badRW) Write(p []byte) (int, error) {
	w.calls++
	if w.calls > 1 {
		return 0, errors.New("it always fails")
	}
	return len(p), nil
}

func TestWriteU32BEvsLE(t *testing.T) {
	var val uint32 = 0x01020304
	bw := NewBufBinWriter()
	bw.WriteU32LE(val)
	bw.WriteU32BE(val)
	require.NoError(t, bw.Err)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0x01, 0x02, 0x03, 0x04}, bw.Bytes())
}

func TestReadWriteRoundTrip(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteU64LE(0xdeadbeef00c0ffee)
	bw.WriteU32LE(42)
	bw.WriteU32BE(7)
	bw.WriteB(0xab)
	bw.WriteBytes([]byte{1, 2, 3})
	require.NoError(t, bw.Err)
	require.Equal(t, 8+4+4+1+3, bw.Len())

	br := NewBinReaderFromBuf(bw.Bytes())
	assert.Equal(t, uint64(0xdeadbeef00c0ffee), br.ReadU64LE())
	assert.Equal(t, uint32(42), br.ReadU32LE())
	assert.Equal(t, uint32(7), br.ReadU32BE())
	assert.Equal(t, byte(0xab), br.ReadB())
	buf := make([]byte, 3)
	br.ReadBytes(buf)
	require.NoError(t, br.Err)
	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.Equal(t, 0, br.Len())
}

func TestReaderErrHandling(t *testing.T) {
	br := NewBinReaderFromBuf([]byte{0x01, 0x02})
	assert.Equal(t, uint32(0), br.ReadU32LE())
	require.Error(t, br.Err)
	// Sticky error, no panics and zero values afterwards.
	assert.Equal(t, uint32(0), br.ReadU32BE())
	assert.Equal(t, byte(0), br.ReadB())
	assert.Equal(t, uint64(0), br.ReadU64LE())
}

func TestWriterErrHandling(t *testing.T) {
	var badio = &badRW{}
	bw := NewBinWriterFromIO(badio)
	bw.WriteU32LE(uint32(0))
	require.NoError(t, bw.Err)
	bw.WriteU32BE(uint32(0))
	require.Error(t, bw.Err)
	// These should work (not panic), but still return an error.
	bw.WriteB(1)
	bw.WriteU64LE(1)
	require.Error(t, bw.Err)
	require.Equal(t, 2, badio.calls)
}

func TestBufBinWriter_Drained(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(1)
	require.Equal(t, []byte{1}, bw.Bytes())
	require.Nil(t, bw.Bytes())
	require.ErrorIs(t, bw.Err, ErrDrained)

	bw.Reset()
	bw.Grow(16)
	bw.WriteB(2)
	require.Equal(t, []byte{2}, bw.Bytes())
}
