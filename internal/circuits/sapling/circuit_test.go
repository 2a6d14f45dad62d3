package sapling_test

import (
	"math/big"
	"testing"

	"github.com/eigerco/zair/internal/circuits/sapling"
)

func zeroPath() (path [32]*big.Int, bits [32]bool) {
	for i := range path {
		path[i] = big.NewInt(0)
	}
	return
}

func TestDeriveIsDeterministic(t *testing.T) {
	notePath, noteBits := zeroPath()
	nmPath, nmBits := zeroPath()

	o := &sapling.Opening{
		SpendingKey:          big.NewInt(42),
		CommitmentRandomness: big.NewInt(7),
		Value:                big.NewInt(1_000_000),
		ValueBlinder:         big.NewInt(11),
		Randomizer:           big.NewInt(5),
		NotePosition:         3,
		NoteAuthPath:         notePath,
		NoteAuthPathBits:     noteBits,
		NMLeftNullifier:      big.NewInt(10),
		NMRightNullifier:     big.NewInt(20),
		NMAuthPath:           nmPath,
		NMPositionBits:       nmBits,
		TargetID:             big.NewInt(99),
		Scheme:               sapling.ValueCommitmentNative,
	}

	d1 := sapling.Derive(o)
	d2 := sapling.Derive(o)

	if d1.AirdropNullifier.Cmp(d2.AirdropNullifier) != 0 {
		t.Fatalf("expected deterministic airdrop nullifier derivation")
	}
	if d1.RandomizedKey.Cmp(new(big.Int).Add(o.SpendingKey, o.Randomizer)) != 0 {
		t.Fatalf("expected rk = ak + ar")
	}
}

func TestDifferentTargetIDsProduceDifferentAirdropNullifiers(t *testing.T) {
	notePath, noteBits := zeroPath()
	nmPath, nmBits := zeroPath()

	base := func(targetID int64) *sapling.Opening {
		return &sapling.Opening{
			SpendingKey:          big.NewInt(42),
			CommitmentRandomness: big.NewInt(7),
			Value:                big.NewInt(1_000_000),
			ValueBlinder:         big.NewInt(11),
			Randomizer:           big.NewInt(5),
			NotePosition:         3,
			NoteAuthPath:         notePath,
			NoteAuthPathBits:     noteBits,
			NMLeftNullifier:      big.NewInt(10),
			NMRightNullifier:     big.NewInt(20),
			NMAuthPath:           nmPath,
			NMPositionBits:       nmBits,
			TargetID:             big.NewInt(targetID),
			Scheme:               sapling.ValueCommitmentNative,
		}
	}

	d1 := sapling.Derive(base(1))
	d2 := sapling.Derive(base(2))

	if d1.AirdropNullifier.Cmp(d2.AirdropNullifier) == 0 {
		t.Fatalf("expected different target IDs to yield different airdrop nullifiers")
	}
}

func TestAssignmentCarriesSchemeSpecificCommitment(t *testing.T) {
	notePath, noteBits := zeroPath()
	nmPath, nmBits := zeroPath()

	o := &sapling.Opening{
		SpendingKey:          big.NewInt(1),
		CommitmentRandomness: big.NewInt(2),
		Value:                big.NewInt(3),
		ValueBlinder:         big.NewInt(4),
		Randomizer:           big.NewInt(5),
		NoteAuthPath:         notePath,
		NoteAuthPathBits:     noteBits,
		NMLeftNullifier:      big.NewInt(10),
		NMRightNullifier:     big.NewInt(20),
		NMAuthPath:           nmPath,
		NMPositionBits:       nmBits,
		TargetID:             big.NewInt(7),
		Scheme:               sapling.ValueCommitmentSHA256,
	}

	d := sapling.Derive(o)
	a := sapling.Assignment(o, d)

	if a.ValueCommitmentSHA256.(*big.Int).Cmp(d.ValueCommitment) != 0 {
		t.Fatalf("expected SHA-256 scheme to populate ValueCommitmentSHA256")
	}
}
