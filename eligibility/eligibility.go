// Package eligibility decides which resolvers may claim queries in a
// given epoch.
//
// Always admits every claimant. VRF admits a claimant whose verifiable
// random output for the epoch falls below a configured threshold, so
// claim rights are spread across resolvers without a coordinator.
package eligibility

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	errorsmod "cosmossdk.io/errors"
	"github.com/blinklabs-io/gouroboros/vrf"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/types"
)

// SeedSize is the size of the epoch nonce VRF inputs are derived from.
const SeedSize = 32

// Always admits every claimant.
type Always struct{}

var _ bridge.Eligibility = Always{}

func (Always) CheckEligibility(context.Context, types.Address, types.EligibilityProof, uint64) error {
	return nil
}

// VRF checks an ECVRF proof over the epoch input. The claimant address
// must be derived from the VRF public key, and the first 8 bytes of the
// VRF output, read big-endian, must be below the threshold.
type VRF struct {
	seed  [SeedSize]byte
	limit uint64
	all   bool
}

var _ bridge.Eligibility = (*VRF)(nil)

// NewVRF creates a VRF check. threshold is the expected fraction of
// eligible keys per epoch, in (0, 1].
func NewVRF(seed [SeedSize]byte, threshold float64) (*VRF, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, errorsmod.Wrapf(bridge.ErrInvalidConfig, "vrf threshold %v outside (0, 1]", threshold)
	}
	v := &VRF{seed: seed}
	if threshold == 1 {
		v.all = true
	} else {
		v.limit = uint64(threshold * math.MaxUint64)
	}
	return v, nil
}

// Input returns the VRF input for an epoch.
func (v *VRF) Input(epoch uint64) ([]byte, error) {
	if epoch > math.MaxInt64 {
		return nil, fmt.Errorf("epoch %d out of range", epoch)
	}
	return vrf.MkInputVrf(int64(epoch), v.seed[:]), nil
}

// CheckEligibility verifies the proof and applies the threshold.
func (v *VRF) CheckEligibility(_ context.Context, claimant types.Address, proof types.EligibilityProof, epoch uint64) error {
	if len(proof.PublicKey) != vrf.PublicKeySize || len(proof.Proof) != vrf.ProofSize {
		return errorsmod.Wrapf(bridge.ErrNotEligible, "malformed vrf proof from %s", claimant)
	}
	if types.AddressFromPublicKey(proof.PublicKey) != claimant {
		return errorsmod.Wrapf(bridge.ErrNotEligible, "vrf key does not belong to %s", claimant)
	}

	input, err := v.Input(epoch)
	if err != nil {
		return errorsmod.Wrap(bridge.ErrNotEligible, err.Error())
	}
	out, err := vrf.VerifyAndHash(proof.PublicKey, proof.Proof, input)
	if err != nil {
		return errorsmod.Wrapf(bridge.ErrNotEligible, "vrf proof from %s: %v", claimant, err)
	}
	if !v.all && binary.BigEndian.Uint64(out[:8]) >= v.limit {
		return errorsmod.Wrapf(bridge.ErrNotEligible, "%s not selected in epoch %d", claimant, epoch)
	}
	return nil
}

// Prove produces the eligibility proof for the key derived from
// secret (a 32-byte VRF seed) in the given epoch, and the address the
// proof binds to.
func (v *VRF) Prove(secret []byte, epoch uint64) (types.EligibilityProof, types.Address, error) {
	pub, sk, err := vrf.KeyGen(secret)
	if err != nil {
		return types.EligibilityProof{}, types.Address{}, err
	}
	input, err := v.Input(epoch)
	if err != nil {
		return types.EligibilityProof{}, types.Address{}, err
	}
	pi, _, err := vrf.Prove(sk, input)
	if err != nil {
		return types.EligibilityProof{}, types.Address{}, err
	}
	return types.EligibilityProof{PublicKey: pub, Proof: pi}, types.AddressFromPublicKey(pub), nil
}
