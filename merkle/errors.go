package merkle

import "errors"

var (
	// ErrProofInvalid indicates the proof does not lead to the published root.
	ErrProofInvalid = errors.New("merkle: proof invalid")

	// ErrEmptyRoot indicates no root has been published yet.
	ErrEmptyRoot = errors.New("merkle: root not published")

	// ErrNoLeaves indicates a tree was requested for an empty leaf set.
	ErrNoLeaves = errors.New("merkle: no leaves")

	// ErrLeafNotFound indicates the leaf is not part of the tree.
	ErrLeafNotFound = errors.New("merkle: leaf not found")

	// ErrEncoding indicates the leaf tuple could not be ABI-encoded.
	ErrEncoding = errors.New("merkle: leaf encoding failed")
)
