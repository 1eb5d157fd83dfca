package merkle

import "errors"

var (
	// ErrBadDepth is returned for tree depths outside of [1, MaxDepth].
	ErrBadDepth = errors.New("bad tree depth")
	// ErrTreeNotFound is returned by Load when there is no metadata record
	// for the tree.
	ErrTreeNotFound = errors.New("tree not found")
	// ErrSubtreeConflict is returned when batch update tries to replace a
	// dense subtree that was already inserted with different contents.
	ErrSubtreeConflict = errors.New("attempting to update pre-existing subtree")
	// ErrIndexOutOfRange is returned for leaf indices not fitting into the
	// tree.
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	// ErrSizeOverflow is returned when tree size can't be represented in the
	// metadata record.
	ErrSizeOverflow = errors.New("tree size overflows metadata record")
	// ErrRetentionMismatch is returned when the DB was created with a
	// different node retention policy.
	ErrRetentionMismatch = errors.New("node retention policy mismatch")
	// ErrInitialLeafMismatch is returned when the tree was created with a
	// different initial leaf value.
	ErrInitialLeafMismatch = errors.New("initial leaf mismatch")
	// ErrHasherMismatch is returned when the tree was created with a
	// different hash function.
	ErrHasherMismatch = errors.New("hasher mismatch")
	// ErrCorruptedNode is returned when a node record has unexpected length.
	ErrCorruptedNode = errors.New("corrupted node record")
	// ErrInvalidMetadata is returned for malformed metadata records.
	ErrInvalidMetadata = errors.New("invalid tree metadata")
)
