package gaptree_test

import (
	"testing"

	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/gaptree"
	"github.com/eigerco/zair/internal/nullifier"
)

func nf(b byte) nullifier.Nullifier {
	var n nullifier.Nullifier
	n[0] = b
	return n
}

func sorted(bs ...byte) []nullifier.Nullifier {
	out := make([]nullifier.Nullifier, len(bs))
	for i, b := range bs {
		out[i] = nf(b)
	}
	return out
}

func TestGapBounds(t *testing.T) {
	chain := sorted(10, 20, 30)

	l, r := gaptree.GapBounds(chain, 0)
	if l != nullifier.Min || r != nf(10) {
		t.Fatalf("gap 0: got (%v,%v)", l, r)
	}
	l, r = gaptree.GapBounds(chain, 1)
	if l != nf(10) || r != nf(20) {
		t.Fatalf("gap 1: got (%v,%v)", l, r)
	}
	l, r = gaptree.GapBounds(chain, 3)
	if l != nf(30) || r != nullifier.Max {
		t.Fatalf("gap 3: got (%v,%v)", l, r)
	}
}

func TestGapBoundsEmptyChainIsSingleGap(t *testing.T) {
	l, r := gaptree.GapBounds(nil, 0)
	if l != nullifier.Min || r != nullifier.Max {
		t.Fatalf("expected (Min,Max), got (%v,%v)", l, r)
	}
}

func TestDenseAndSparseTreesAgreeOnRoot(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 20, 30)

	dense, err := gaptree.NewDenseTree(scheme, nullifier.Sapling, chain)
	if err != nil {
		t.Fatalf("dense: %v", err)
	}

	sp, _, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, sorted(15))
	if err != nil {
		t.Fatalf("sparse: %v", err)
	}

	if dense.Root() != sp.Root() {
		t.Fatalf("dense and sparse roots disagree")
	}
}

func TestUserInMiddleGapMarksAndWitnesses(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 20, 30)

	tree, positions, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, sorted(15))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 marked position, got %d", len(positions))
	}
	p := positions[0]
	if p.Position != 1 || p.LeftBound != nf(10) || p.RightBound != nf(20) {
		t.Fatalf("unexpected position: %+v", p)
	}

	leaf, ok := tree.Leaf(p.Position)
	if !ok {
		t.Fatalf("expected leaf to be present")
	}
	path, err := tree.Witness(p.Position)
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	if !gaptree.VerifyPath(scheme, leaf, p.Position, path, tree.Root()) {
		t.Fatalf("path did not verify against root")
	}
}

func TestUserEqualsChainNullifierIsSkipped(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 20, 30)

	_, positions, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, sorted(20))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected exact-match user nullifier to be dropped, got %d positions", len(positions))
	}
}

func TestMultipleUsersSameGapMarkOnce(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 100)

	_, positions, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, sorted(20, 50, 80))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("expected 3 marked entries (one per user), got %d", len(positions))
	}
	for _, p := range positions {
		if p.Position != 1 {
			t.Fatalf("expected all three users to land in gap 1, got %d", p.Position)
		}
	}
}

func TestUnmarkedPositionWitnessFails(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 20)

	tree, _, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := tree.Witness(0); err != gaptree.ErrNotMarked {
		t.Fatalf("expected ErrNotMarked, got %v", err)
	}
}

func TestUnsortedUsersStillAllMarked(t *testing.T) {
	scheme := sapling.Scheme{}
	chain := sorted(10, 40, 70, 100)

	// 80 sorts after 15, so a lockstep walk over this order alone would
	// advance past gap (10,40) before ever considering 15, dropping it.
	_, positions, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, chain, sorted(80, 15, 50))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("expected all 3 out-of-order users to be marked, got %d", len(positions))
	}

	want := map[nullifier.Nullifier]uint64{
		nf(15): 1, // gap (10,40)
		nf(50): 2, // gap (40,70)
		nf(80): 3, // gap (70,100)
	}
	for _, p := range positions {
		wantPos, ok := want[p.Nullifier]
		if !ok {
			t.Fatalf("unexpected nullifier in positions: %+v", p)
		}
		if p.Position != wantPos {
			t.Fatalf("nullifier %v: expected gap %d, got %d", p.Nullifier, wantPos, p.Position)
		}
	}
}

func TestEmptyChainSingleGap(t *testing.T) {
	scheme := sapling.Scheme{}

	tree, positions, err := gaptree.NewSparseTree(scheme, nullifier.Sapling, nil, sorted(50))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tree.LeafCount() != 1 {
		t.Fatalf("expected 1 leaf, got %d", tree.LeafCount())
	}
	if len(positions) != 1 || positions[0].Position != 0 {
		t.Fatalf("expected user to map into the sole gap, got %+v", positions)
	}
}
