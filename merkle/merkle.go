// Package merkle verifies whitelist membership proofs against a published
// 32-byte root.
//
// Proofs use sorted-pair keccak256 hashing: at each level the two children
// are ordered by value before hashing, so a proof is just the list of
// sibling hashes from the leaf to the root. The construction is the one
// produced by the standard off-chain Merkle tree tooling, and the Tree type
// in this package builds identical roots and proofs.
package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// HashPair hashes two nodes in sorted order:
//
//	a < b:  keccak256(a || b)
//	else:   keccak256(b || a)
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) < 0 {
		return crypto.Keccak256Hash(a[:], b[:])
	}
	return crypto.Keccak256Hash(b[:], a[:])
}

// ProcessProof folds the proof into the leaf and returns the resulting root.
func ProcessProof(proof []common.Hash, leaf common.Hash) common.Hash {
	computed := leaf
	for _, node := range proof {
		computed = HashPair(computed, node)
	}
	return computed
}

// Verify reports whether leaf is a member of the tree committed to by root.
// An unset (zero) root never verifies.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	if root == (common.Hash{}) {
		return false
	}
	return ProcessProof(proof, leaf) == root
}

// VerifyErr is Verify with a typed error for callers that propagate it.
func VerifyErr(proof []common.Hash, root, leaf common.Hash) error {
	if root == (common.Hash{}) {
		return ErrEmptyRoot
	}
	if ProcessProof(proof, leaf) != root {
		return ErrProofInvalid
	}
	return nil
}
