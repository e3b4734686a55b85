// Package merkle verifies merkle inclusion proofs and builds the trees
// they are produced from.
//
// A proof is a sibling path plus a position index. Verification walks
// the path bottom-up: at each level the low bit of the index decides
// whether the running hash is the left (0) or right (1) operand, then
// the index is shifted right. The left/right decision never depends on
// hash values.
package merkle

import "github.com/blockberries/bridgeberry/types"

// Verify recomputes a root from leaf, path and index and reports
// whether it equals root. A malformed or overlong path simply fails
// the comparison; callers bound the path length to the tree depth.
func Verify(path []types.Hash, root types.Hash, index uint64, leaf types.Hash) bool {
	return ComputeRoot(path, index, leaf) == root
}

// ComputeRoot folds leaf up the sibling path.
func ComputeRoot(path []types.Hash, index uint64, leaf types.Hash) types.Hash {
	current := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			current = types.HashConcat(current, sibling)
		} else {
			current = types.HashConcat(sibling, current)
		}
		index >>= 1
	}
	return current
}
