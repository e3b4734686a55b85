package types

import "crypto/sha256"

// RequestLeaf is the leaf committing to a posted request in the
// requests tree of an external block: sha256(id || digest).
func RequestLeaf(id QueryID, digest Hash) Hash {
	h := sha256.New()
	h.Write(id[:])
	h.Write(digest[:])
	var out Hash
	h.Sum(out[:0])
	return out
}

// TallyLeaf is the leaf committing to a result in the tallies tree of
// an external block: sha256(inclusionHash || result).
func TallyLeaf(inclusion Hash, result []byte) Hash {
	h := sha256.New()
	h.Write(inclusion[:])
	h.Write(result)
	var out Hash
	h.Sum(out[:0])
	return out
}
