// Package types defines the core data types of the oracle bridge:
// query identifiers, requests, responses, claims and the caller
// environment every state-changing call executes in.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Stores persist them as-is and
// the gRPC transport sends them without a conversion layer.
package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the size of a SHA-256 hash in bytes.
const HashSize = sha256.Size

// AddressSize is the size of an identity address in bytes.
const AddressSize = 20

// Hash is a 32-byte cryptographic hash.
type Hash [HashSize]byte

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// HashBytes computes the SHA-256 hash of arbitrary bytes.
func HashBytes(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// HashConcat computes the SHA-256 hash of the concatenation of two
// hashes. This is the node combiner of every merkle tree the bridge
// verifies.
func HashConcat(left, right Hash) Hash {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	h.Sum(out[:0])
	return out
}

// ParseHash decodes a hex string (optionally 0x-prefixed) into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("decode hash: want %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Address identifies a requester, reporter or claimant.
type Address [AddressSize]byte

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

// ParseAddress decodes a hex string (optionally 0x-prefixed) into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}
	if len(b) != AddressSize {
		return a, fmt.Errorf("decode address: want %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// AddressFromPublicKey derives the address bound to a public key:
// the last 20 bytes of its SHA-256 hash.
func AddressFromPublicKey(pub []byte) Address {
	sum := sha256.Sum256(pub)
	var a Address
	copy(a[:], sum[HashSize-AddressSize:])
	return a
}

// QueryID identifies a query for its whole lifetime. In the direct
// variant it is a sequence number, in the claim variant the content
// hash of the request payload.
type QueryID [HashSize]byte

// SequenceID builds the identifier for the n-th posted query.
// The number is stored big-endian in the last 8 bytes.
func SequenceID(n uint64) QueryID {
	var id QueryID
	binary.BigEndian.PutUint64(id[HashSize-8:], n)
	return id
}

// ContentID builds the content-addressed identifier of a payload.
func ContentID(payload []byte) QueryID {
	return QueryID(sha256.Sum256(payload))
}

// Sequence returns the sequence number encoded in the identifier and
// whether the identifier has the sequence shape at all.
func (id QueryID) Sequence() (uint64, bool) {
	for _, b := range id[:HashSize-8] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(id[HashSize-8:]), true
}

// IsZero reports whether the identifier is unset.
func (id QueryID) IsZero() bool { return id == QueryID{} }

func (id QueryID) String() string {
	if n, ok := id.Sequence(); ok {
		return fmt.Sprintf("#%d", n)
	}
	return hex.EncodeToString(id[:])
}

// ParseQueryID accepts either "#n" / a decimal sequence number or a
// 64-character hex content identifier.
func ParseQueryID(s string) (QueryID, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) < 2*HashSize {
		var n uint64
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n == 0 {
			return QueryID{}, fmt.Errorf("invalid query id %q", s)
		}
		return SequenceID(n), nil
	}
	h, err := ParseHash(s)
	if err != nil {
		return QueryID{}, err
	}
	return QueryID(h), nil
}

// PayloadRef is a reference to a request payload held by the payload
// store, used when the payload is not copied inline.
type PayloadRef string

// BlockRef identifies a block of the external oracle network whose
// merkle roots are kept by the header store.
type BlockRef Hash

func (b BlockRef) String() string { return Hash(b).String() }
