package merkle

import (
	"fmt"

	"github.com/blockberries/bridgeberry/types"
)

// Tree is an immutable merkle tree over an ordered list of leaves.
// Pairs are combined with types.HashConcat; an odd node at the end of
// a level is promoted unchanged to the next level.
type Tree struct {
	levels [][]types.Hash
}

// NewTree builds the tree bottom-up. An empty tree has a zero root.
func NewTree(leaves []types.Hash) *Tree {
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)
	t := &Tree{levels: [][]types.Hash{level}}

	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, types.HashConcat(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Size returns the number of leaves.
func (t *Tree) Size() int { return len(t.levels[0]) }

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int { return len(t.levels) - 1 }

// Root returns the root hash.
func (t *Tree) Root() types.Hash {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return types.Hash{}
	}
	return top[0]
}

// Proof returns the sibling path and index for the i-th leaf, such
// that Verify(path, t.Root(), index, leaf) holds. Levels where the node
// was promoted contribute neither a sibling nor an index bit.
func (t *Tree) Proof(i int) ([]types.Hash, uint64, error) {
	if i < 0 || i >= t.Size() {
		return nil, 0, fmt.Errorf("leaf %d out of range [0,%d)", i, t.Size())
	}
	var (
		path  []types.Hash
		index uint64
		pos   = i
	)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			if pos&1 == 1 {
				index |= 1 << uint(len(path))
			}
			path = append(path, level[sibling])
		}
		pos /= 2
	}
	return path, index, nil
}
