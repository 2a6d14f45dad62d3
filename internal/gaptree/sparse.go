package gaptree

import (
	"github.com/eigerco/zair/internal/nullifier"
)

// SparseTree is the bridge-tree-shaped backend used by the claim builder:
// it is built once from the chain's sanitized nullifiers together with the
// claimant's own nullifiers, and exposes authentication paths only for the
// gap positions those user nullifiers actually fall into ("marked"
// positions) — mirroring the reference tree's witness(position) contract,
// which errors for any position that was never marked.
//
// Internally it keeps the full dense node array rather than a true
// checkpointed frontier, since a single claim run only ever needs to mark
// a handful of positions out of a chain-sized leaf set and the dense
// representation is simpler to keep correct; the marked/unmarked witness
// contract callers observe is identical either way.
type SparseTree struct {
	dense     *DenseTree
	marked    map[uint64]TreePosition
	positions []TreePosition
}

// NewSparseTree builds a gap tree from sanitized chain nullifiers, marking
// the gap each of the sanitized user nullifiers falls into. User
// nullifiers equal to a chain nullifier are silently dropped, per
// markForUsers. users need not arrive pre-sorted: markForUsers walks a
// single forward pointer through the user set in pool order, so callers
// passing notes in block/scan order would otherwise silently lose any
// user nullifier that sorts before one already consumed.
func NewSparseTree(scheme HashScheme, pool nullifier.Pool, chain, users []nullifier.Nullifier) (*SparseTree, []TreePosition, error) {
	leaves := leafSet(scheme, chain)
	dense, err := buildDense(scheme, leaves)
	if err != nil {
		return nil, nil, err
	}

	sortedUsers, err := nullifier.Sanitize(pool, users)
	if err != nil {
		return nil, nil, err
	}

	positions := markForUsers(pool, chain, sortedUsers)
	marked := make(map[uint64]TreePosition, len(positions))
	for _, p := range positions {
		marked[p.Position] = p
	}

	return &SparseTree{dense: dense, marked: marked, positions: positions}, positions, nil
}

// Root returns the tree's root hash.
func (t *SparseTree) Root() Node { return t.dense.Root() }

// LeafCount returns the number of gap leaves.
func (t *SparseTree) LeafCount() uint64 { return t.dense.LeafCount() }

// Scheme returns the hash scheme the tree was built with.
func (t *SparseTree) Scheme() HashScheme { return t.dense.Scheme() }

// MarkedPositions returns every leaf position that was marked during
// construction, one per user nullifier that fell inside a gap, in pool
// order of those nullifiers (users are sanitized before marking).
func (t *SparseTree) MarkedPositions() []TreePosition {
	out := make([]TreePosition, len(t.positions))
	copy(out, t.positions)
	return out
}

// Witness returns the authentication path for a marked position. It
// returns ErrNotMarked for any position that was not produced by
// markForUsers during construction, matching the reference tree's
// behavior of refusing to witness positions nobody claimed.
func (t *SparseTree) Witness(position uint64) ([]Node, error) {
	if _, ok := t.marked[position]; !ok {
		return nil, ErrNotMarked
	}
	return t.dense.Witness(position)
}

// Leaf recomputes the leaf node at a marked position from its recorded
// bounds, for callers building a proof witness that needs both the leaf
// value and its authentication path.
func (t *SparseTree) Leaf(position uint64) (Node, bool) {
	p, ok := t.marked[position]
	if !ok {
		return Node{}, false
	}
	return t.dense.Scheme().CombineLeaf(p.LeftBound, p.RightBound), true
}
