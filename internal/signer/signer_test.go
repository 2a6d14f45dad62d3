package signer

import (
	"bytes"
	"testing"

	"github.com/eigerco/zair/pkg/types"
)

func TestReRandomizedSignVerifyRoundTrip(t *testing.T) {
	digest := bytes.Repeat([]byte{0x42}, 32)
	rk := bytes.Repeat([]byte{0x07}, 32)
	alpha := bytes.Repeat([]byte{0x11}, 32)

	sig, commitment, err := reRandomizedSign(digest, alpha, rk)
	if err != nil {
		t.Fatalf("reRandomizedSign: %v", err)
	}

	if !Verify(digest, sig, commitment, rk) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	digest := bytes.Repeat([]byte{0x42}, 32)
	other := bytes.Repeat([]byte{0x43}, 32)
	rk := bytes.Repeat([]byte{0x07}, 32)
	alpha := bytes.Repeat([]byte{0x11}, 32)

	sig, commitment, err := reRandomizedSign(digest, alpha, rk)
	if err != nil {
		t.Fatalf("reRandomizedSign: %v", err)
	}

	if Verify(other, sig, commitment, rk) {
		t.Fatal("expected signature to be rejected under a different digest")
	}
}

func TestVerifyRejectsWrongCommitment(t *testing.T) {
	digest := bytes.Repeat([]byte{0x42}, 32)
	rk := bytes.Repeat([]byte{0x07}, 32)
	alpha := bytes.Repeat([]byte{0x11}, 32)
	otherAlpha := bytes.Repeat([]byte{0x12}, 32)

	sig, _, err := reRandomizedSign(digest, alpha, rk)
	if err != nil {
		t.Fatalf("reRandomizedSign: %v", err)
	}
	_, otherCommitment, err := reRandomizedSign(digest, otherAlpha, rk)
	if err != nil {
		t.Fatalf("reRandomizedSign: %v", err)
	}

	if Verify(digest, sig, otherCommitment, rk) {
		t.Fatal("expected signature to be rejected under a mismatched commitment")
	}
}

func TestIndexSecretsDetectsDuplicates(t *testing.T) {
	secrets := &types.ClaimSecretsOutput{
		Sapling: []types.SecretRecord{
			{Pool: "sapling", AirdropNullifier: types.HexNullifier{0x01}},
			{Pool: "sapling", AirdropNullifier: types.HexNullifier{0x01}},
		},
	}

	if _, err := indexSecrets(secrets); err == nil {
		t.Fatal("expected duplicate secret error")
	}
}

func TestSignDetectsDuplicateAirdropNullifier(t *testing.T) {
	nf := types.HexNullifier{0x02}
	proofs := &types.ClaimProofsOutput{
		Sapling: []types.ProofRecord{
			{AirdropNullifier: nf, RandomizedKey: []byte{1, 2, 3}},
			{AirdropNullifier: nf, RandomizedKey: []byte{1, 2, 3}},
		},
	}
	secrets := &types.ClaimSecretsOutput{
		Sapling: []types.SecretRecord{
			{Pool: "sapling", AirdropNullifier: nf, Randomizer: bytes.Repeat([]byte{0x09}, 32)},
		},
	}
	cfg := Config{
		Messages: []MessageAssignment{
			{Pool: "sapling", AirdropNullifier: nf, Message: []byte("recipient")},
		},
	}

	if _, err := Sign(types.NetworkTestnet, proofs, secrets, cfg); err == nil {
		t.Fatal("expected duplicate airdrop nullifier to be rejected")
	}
}

func TestSignProducesVerifiableClaim(t *testing.T) {
	nf := types.HexNullifier{0x03}
	proofs := &types.ClaimProofsOutput{
		Sapling: []types.ProofRecord{
			{Pool: "sapling", AirdropNullifier: nf, RandomizedKey: bytes.Repeat([]byte{0x05}, 32)},
		},
	}
	secrets := &types.ClaimSecretsOutput{
		Sapling: []types.SecretRecord{
			{Pool: "sapling", AirdropNullifier: nf, Randomizer: bytes.Repeat([]byte{0x09}, 32)},
		},
	}
	cfg := Config{
		SaplingTargetID: "namada-testnet",
		Messages: []MessageAssignment{
			{Pool: "sapling", AirdropNullifier: nf, Message: []byte("recipient")},
		},
	}

	sub, err := Sign(types.NetworkTestnet, proofs, secrets, cfg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sub.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(sub.Claims))
	}

	claim := sub.Claims[0]
	digest := Digest("sapling", cfg.SaplingTargetID, claim.ProofHash, claim.MessageHash)
	if !Verify(digest, claim.SpendAuthSig, claim.RandomizerCommitment, claim.RandomizedKey) {
		t.Fatal("expected signed claim to verify")
	}
}
