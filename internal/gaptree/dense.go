package gaptree

import (
	"github.com/eigerco/zair/internal/nullifier"
)

// DenseTree stores every node of the tree in a level-by-level array. It is
// used by the snapshot builder, which needs the final root but never needs
// to retain authentication paths for specific positions after the snapshot
// is published.
type DenseTree struct {
	scheme HashScheme
	levels [][]Node // levels[0] is the leaf level
	root   Node
}

// NewDenseTree builds a dense gap tree directly from a sanitized,
// pool-ordered nullifier set with no marked positions. It is used to
// compute the snapshot anchor only; callers who also need witnesses for
// specific user nullifiers should use NewSparseTree.
func NewDenseTree(scheme HashScheme, pool nullifier.Pool, sorted []nullifier.Nullifier) (*DenseTree, error) {
	leaves := leafSet(scheme, sorted)
	return buildDense(scheme, leaves)
}

func buildDense(scheme HashScheme, leaves []Node) (*DenseTree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}
	if uint64(len(leaves)) > uint64(1)<<Depth {
		return nil, ErrOverflow
	}

	levels := make([][]Node, Depth+1)
	levels[0] = leaves

	for level := 0; level < Depth; level++ {
		cur := levels[level]
		next := make([]Node, (len(cur)+1)/2)
		for i := range next {
			l := cur[2*i]
			var r Node
			if 2*i+1 < len(cur) {
				r = cur[2*i+1]
			} else {
				r = scheme.EmptyRoot(level)
			}
			next[i] = scheme.CombineInternal(level, l, r)
		}
		levels[level+1] = next
	}

	return &DenseTree{
		scheme: scheme,
		levels: levels,
		root:   levels[Depth][0],
	}, nil
}

// Root returns the tree's root hash.
func (t *DenseTree) Root() Node { return t.root }

// LeafCount returns the number of gap leaves (one more than the number of
// sanitized chain nullifiers).
func (t *DenseTree) LeafCount() uint64 { return uint64(len(t.levels[0])) }

// Scheme returns the hash scheme the tree was built with.
func (t *DenseTree) Scheme() HashScheme { return t.scheme }

// Levels returns every level of the tree, leaves first (levels[0]) up to
// the single-node root level, for serialization per SPEC_FULL.md §4.2.
func (t *DenseTree) Levels() [][]Node { return t.levels }

// Witness returns the authentication path for a leaf position, padded with
// empty-subtree roots above the populated levels. Dense trees can witness
// any position, not just marked ones, since all nodes are retained.
func (t *DenseTree) Witness(position uint64) ([]Node, error) {
	if position >= t.LeafCount() {
		return nil, ErrNotMarked
	}
	path := make([]Node, Depth)
	pos := position
	for level := 0; level < Depth; level++ {
		siblingIdx := pos ^ 1
		layer := t.levels[level]
		if int(siblingIdx) < len(layer) {
			path[level] = layer[siblingIdx]
		} else {
			path[level] = t.scheme.EmptyRoot(level)
		}
		pos /= 2
	}
	return path, nil
}
