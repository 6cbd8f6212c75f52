package merkle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Tree is a complete binary Merkle tree stored in array form: node i has
// children 2i+1 and 2i+2, the root is node 0 and the leaves occupy the last
// len(leaves) slots. Leaves are sorted before placement so the same leaf set
// always produces the same root.
type Tree struct {
	nodes []common.Hash
	index map[common.Hash]int
}

// BuildTree builds a tree over the given leaf hashes. Duplicate leaves are
// kept; Proof returns the path of the first occurrence.
func BuildTree(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	sorted := make([]common.Hash, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	n := len(sorted)
	nodes := make([]common.Hash, 2*n-1)
	index := make(map[common.Hash]int, n)
	for i, leaf := range sorted {
		pos := len(nodes) - 1 - i
		nodes[pos] = leaf
		if _, seen := index[leaf]; !seen {
			index[leaf] = pos
		}
	}
	for i := len(nodes) - 1 - n; i >= 0; i-- {
		nodes[i] = HashPair(nodes[2*i+1], nodes[2*i+2])
	}

	return &Tree{nodes: nodes, index: index}, nil
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

// Proof returns the sibling path for leaf, bottom-up.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	pos, ok := t.index[leaf]
	if !ok {
		return nil, ErrLeafNotFound
	}
	var proof []common.Hash
	for pos > 0 {
		sibling := pos - 1
		if pos%2 == 1 {
			sibling = pos + 1
		}
		proof = append(proof, t.nodes[sibling])
		pos = (pos - 1) / 2
	}
	return proof, nil
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return (len(t.nodes) + 1) / 2
}
