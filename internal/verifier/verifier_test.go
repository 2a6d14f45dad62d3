package verifier_test

import (
	"context"
	"testing"

	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/paramcache"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/verifier"
	"github.com/eigerco/zair/pkg/types"
)

func newVerifier(t *testing.T, cfg *types.AirdropConfiguration) *verifier.Verifier {
	t.Helper()
	cache, err := paramcache.New(t.TempDir())
	if err != nil {
		t.Fatalf("paramcache.New: %v", err)
	}
	return verifier.New(cfg, sapling.NewManager(cache), orchard.NewManager(cache), nil, nil)
}

func baseConfig() *types.AirdropConfiguration {
	anchor := "aa"
	root := "bb"
	targetID := "namada-testnet"
	return &types.AirdropConfiguration{
		Network:            types.NetworkTestnet,
		SaplingAnchor:      &anchor,
		SaplingGapTreeRoot: &root,
		SaplingTargetID:    &targetID,
		OrchardAnchor:      &anchor,
		OrchardGapTreeRoot: &root,
		OrchardTargetID:    &targetID,
	}
}

func TestVerifyRejectsNetworkMismatch(t *testing.T) {
	v := newVerifier(t, baseConfig())
	sub := &types.Submission{Network: types.NetworkMainnet}

	if _, err := v.Verify(context.Background(), sub); err == nil {
		t.Fatal("expected network mismatch to be rejected")
	}
}

func TestVerifyDetectsDuplicateWithinSubmission(t *testing.T) {
	v := newVerifier(t, baseConfig())
	nf := types.HexNullifier{0x01}

	sub := &types.Submission{
		Network: types.NetworkTestnet,
		Claims: []types.SignedClaim{
			{Pool: "sapling", AirdropNullifier: nf},
			{Pool: "sapling", AirdropNullifier: nf},
		},
	}

	result, err := v.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected both duplicate entries reported as failures, got %d", len(result.Failed))
	}
}

func TestVerifyReportsUnknownPool(t *testing.T) {
	v := newVerifier(t, baseConfig())
	sub := &types.Submission{
		Network: types.NetworkTestnet,
		Claims: []types.SignedClaim{
			{Pool: "sprout", AirdropNullifier: types.HexNullifier{0x02}},
		},
	}

	result, err := v.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(result.Failed) != 1 || len(result.Accepted) != 0 {
		t.Fatalf("expected the unknown-pool claim to be rejected, got %+v", result)
	}
}

func TestVerifyContinuesAfterAClaimFails(t *testing.T) {
	v := newVerifier(t, baseConfig())
	sub := &types.Submission{
		Network: types.NetworkTestnet,
		Claims: []types.SignedClaim{
			{Pool: "sprout", AirdropNullifier: types.HexNullifier{0x03}},
			{Pool: "orchard", AirdropNullifier: types.HexNullifier{0x04}},
		},
	}

	result, err := v.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected both claims to be checked and both to fail, got %+v", result)
	}
}
