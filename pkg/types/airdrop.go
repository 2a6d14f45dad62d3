// Package types defines the wire-format records exchanged between the
// snapshot builder, claim builder, signer, and verifier: the published
// AirdropConfiguration, proof and secret files, and signed submissions.
package types

import (
	"encoding/hex"
	"time"

	"github.com/eigerco/zair/internal/nullifier"
)

// Network identifies which Zcash network a snapshot was taken from.
type Network string

const (
	NetworkMainnet Network = "main"
	NetworkTestnet Network = "test"
)

// HexNullifier marshals a nullifier.Nullifier as reversed hex, matching
// the wallet display convention used throughout the file formats below.
type HexNullifier nullifier.Nullifier

// MarshalText implements encoding.TextMarshaler.
func (h HexNullifier) MarshalText() ([]byte, error) {
	return []byte(nullifier.Nullifier(h).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HexNullifier) UnmarshalText(text []byte) error {
	reversed, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	var n nullifier.Nullifier
	for i, b := range reversed {
		n[len(reversed)-1-i] = b
	}
	*h = HexNullifier(n)
	return nil
}

// Nullifier converts back to the internal value type.
func (h HexNullifier) Nullifier() nullifier.Nullifier { return nullifier.Nullifier(h) }

// AirdropConfiguration is the published artifact claimants and verifiers
// both rely on: the snapshot height, per-pool gap tree roots and note
// commitment anchors, and the domain-separation target IDs bound into
// every airdrop nullifier of this airdrop round.
type AirdropConfiguration struct {
	Network            Network `json:"network"`
	SnapshotHeight      uint64  `json:"snapshot_height"`
	SaplingGapTreeRoot  *string `json:"sapling_gap_tree_root,omitempty"`
	SaplingAnchor       *string `json:"sapling_anchor,omitempty"`
	SaplingTargetID     *string `json:"sapling_target_id,omitempty"`
	OrchardGapTreeRoot  *string `json:"orchard_gap_tree_root,omitempty"`
	OrchardAnchor       *string `json:"orchard_anchor,omitempty"`
	OrchardTargetID     *string `json:"orchard_target_id,omitempty"`
	PublishedAt         time.Time `json:"published_at"`
}

// ValueCommitmentScheme selects how the claim circuit commits to a note's
// value: the pool's native commitment, or a SHA-256 variant used where the
// native commitment's curve arithmetic would be too costly in-circuit.
type ValueCommitmentScheme uint8

const (
	ValueCommitmentNative ValueCommitmentScheme = iota
	ValueCommitmentSHA256
)

// ProofRecord is one entry of the claim-proofs output file: the public
// material a verifier checks a claim against.
type ProofRecord struct {
	Pool                string                `json:"pool"`
	ZKProof             []byte                `json:"zkproof"`
	RandomizedKey       []byte                `json:"rk"`
	ValueCommitment     []byte                `json:"cv"`
	ValueCommitmentHash []byte                `json:"cv_sha256,omitempty"`
	AirdropNullifier    HexNullifier          `json:"airdrop_nullifier"`
	Scheme              ValueCommitmentScheme `json:"value_commitment_scheme"`
}

// SecretRecord is one entry of the claim-secrets output file: sensitive
// material that must never be published, kept in a 0600 file separate
// from ProofRecord.
type SecretRecord struct {
	Pool             string       `json:"pool"`
	AirdropNullifier HexNullifier `json:"airdrop_nullifier"`
	Randomizer       []byte       `json:"ar"`
	ValueBlinder     []byte       `json:"rcv"`
}

// ClaimProofsOutput is the full claim-proofs file: one ProofRecord list
// per pool, produced by the claim builder and consumed by the signer.
type ClaimProofsOutput struct {
	Sapling []ProofRecord `json:"sapling,omitempty"`
	Orchard []ProofRecord `json:"orchard,omitempty"`
}

// ClaimSecretsOutput mirrors ClaimProofsOutput but holds only the secret
// material, written with file mode 0600.
type ClaimSecretsOutput struct {
	Sapling []SecretRecord `json:"sapling,omitempty"`
	Orchard []SecretRecord `json:"orchard,omitempty"`
}

// SignedClaim is one entry of a submission file: a proof bound to a
// specific message via a re-randomized spend-authorization signature.
type SignedClaim struct {
	Pool                  string       `json:"pool"`
	ZKProof               []byte       `json:"zkproof"`
	RandomizedKey         []byte       `json:"rk"`
	ValueCommitment       []byte       `json:"cv"`
	ValueCommitmentHash   []byte       `json:"cv_sha256,omitempty"`
	AirdropNullifier      HexNullifier `json:"airdrop_nullifier"`
	ProofHash             []byte       `json:"proof_hash"`
	MessageHash           []byte       `json:"message_hash"`
	// RandomizerCommitment is the G1 point A = [ar]G, published so a
	// verifier can check SpendAuthSig without ever learning ar itself.
	RandomizerCommitment []byte `json:"randomizer_commitment"`
	SpendAuthSig         []byte `json:"spend_auth_sig"`
}

// Submission is the final artifact C7 produces and C8 consumes.
type Submission struct {
	Network Network        `json:"network"`
	Claims  []SignedClaim  `json:"claims"`
}
