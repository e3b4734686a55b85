package types

import "fmt"

// Variant selects the lifecycle shape of a bridge. Both variants share
// the escrow ledger and merkle verifier and differ only in the guards
// between Posted and Reported.
type Variant uint8

const (
	// VariantDirect resolves queries by an authorized reporter supplying
	// a transaction hash and the result: Posted -> Reported.
	VariantDirect Variant = iota
	// VariantClaim inserts a claim window and a merkle-proven inclusion
	// step: Posted -> Claimed -> Included -> Reported.
	VariantClaim
)

// HasClaims reports whether the variant exposes claim and inclusion
// operations.
func (v Variant) HasClaims() bool { return v == VariantClaim }

// ContentAddressed reports whether query ids are derived from the
// request payload rather than assigned from a sequence.
func (v Variant) ContentAddressed() bool { return v == VariantClaim }

// String returns a human-readable representation.
func (v Variant) String() string {
	switch v {
	case VariantDirect:
		return "direct"
	case VariantClaim:
		return "claim"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// ParseVariant maps a configuration string onto a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "direct", "":
		return VariantDirect, nil
	case "claim", "legacy":
		return VariantClaim, nil
	default:
		return 0, fmt.Errorf("unknown bridge variant %q", s)
	}
}
