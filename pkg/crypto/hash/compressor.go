package hash

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/nspcc-dev/notetree/pkg/util"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Compression function names accepted by NewCompressor.
const (
	SHA256    = "sha256"
	Blake2s   = "blake2s"
	Keccak256 = "keccak256"
	MiMCBN254 = "mimc_bn254"
)

// ErrUnknownHasher is returned for unsupported compression function names.
var ErrUnknownHasher = errors.New("unknown hasher")

// NewCompressor returns the compression function with the given name.
func NewCompressor(name string) (Compressor, error) {
	switch name {
	case SHA256, "":
		return CompressorFunc(Sha256Compress), nil
	case Blake2s:
		return CompressorFunc(Blake2sCompress), nil
	case Keccak256:
		return CompressorFunc(Keccak256Compress), nil
	case MiMCBN254:
		return CompressorFunc(MiMCCompress), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownHasher, name)
	}
}

func concat(left, right util.Uint256) [2 * util.Uint256Size]byte {
	var buf [2 * util.Uint256Size]byte
	copy(buf[:], left[:])
	copy(buf[util.Uint256Size:], right[:])
	return buf
}

// Sha256Compress hashes the concatenation of left and right with SHA-256.
func Sha256Compress(left, right util.Uint256) util.Uint256 {
	buf := concat(left, right)
	return sha256.Sum256(buf[:])
}

// Blake2sCompress hashes the concatenation of left and right with BLAKE2s-256.
func Blake2sCompress(left, right util.Uint256) util.Uint256 {
	buf := concat(left, right)
	return blake2s.Sum256(buf[:])
}

// Keccak256Compress hashes the concatenation of left and right with legacy
// Keccak-256 (the Ethereum flavour).
func Keccak256Compress(left, right util.Uint256) util.Uint256 {
	var res util.Uint256
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	h.Sum(res[:0])
	return res
}

// MiMCCompress hashes left and right with MiMC over the BN254 scalar field.
// Both inputs are reduced modulo the field order first, so any 32 byte value
// is accepted; the result is always a canonical field element.
func MiMCCompress(left, right util.Uint256) util.Uint256 {
	var (
		res  util.Uint256
		l, r fr.Element
	)
	l.SetBytes(left[:])
	r.SetBytes(right[:])
	lb, rb := l.Bytes(), r.Bytes()

	h := mimc.NewMiMC()
	// Canonical field elements are never rejected.
	_, _ = h.Write(lb[:])
	_, _ = h.Write(rb[:])
	h.Sum(res[:0])
	return res
}
