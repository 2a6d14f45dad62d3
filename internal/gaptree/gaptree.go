// Package gaptree implements the non-membership "gap tree": a height-32
// sparse binary Merkle tree whose leaves are the hash of consecutive pairs
// of nullifiers in a sanitized, pool-ordered set. A position inside a gap
// leaf is a non-membership witness for every value strictly between the
// pair, including every value a claimant's note could have produced.
package gaptree

import (
	"errors"

	"github.com/eigerco/zair/internal/nullifier"
)

// Depth is the height of the gap tree, matching the Sapling/Orchard note
// commitment tree depth so paths from both trees are structurally uniform.
const Depth = 32

// LeafHashLevel is the domain-separation level passed to the per-pool hash
// scheme when hashing a leaf. It is chosen outside the tree's own internal
// level range (0..31) so a leaf hash can never collide with an internal
// node hash computed at some real tree level.
const LeafHashLevel = 62

// Node is a 32-byte value in the gap tree: either a leaf (hash of a
// nullifier pair) or an internal node (hash of two children).
type Node [32]byte

// Empty is the all-zero node used as the canonical empty leaf.
var Empty = Node{}

// HashScheme supplies the per-pool cryptographic hash used to build gap
// tree leaves and combine internal nodes. Sapling and Orchard each provide
// a distinct implementation; dense and sparse trees built with the same
// scheme must always agree on root and witnesses.
type HashScheme interface {
	// CombineLeaf hashes a gap's bounding nullifier pair into a leaf node,
	// using LeafHashLevel for domain separation.
	CombineLeaf(left, right nullifier.Nullifier) Node
	// CombineInternal hashes two children at the given tree level (0 is
	// the level directly above the leaves).
	CombineInternal(level int, l, r Node) Node
	// EmptyRoot returns the precomputed root of an empty subtree rooted at
	// the given level (level 0 is the empty leaf itself).
	EmptyRoot(level int) Node
}

// ErrNotMarked is returned when a witness is requested for a position that
// was never marked during construction.
var ErrNotMarked = errors.New("gaptree: position not marked")

// ErrOverflow is returned when a leaf set would exceed the tree's capacity.
var ErrOverflow = errors.New("gaptree: too many leaves for tree depth")

// ErrNoLeaves is returned by constructors given zero leaves, since every
// gap construction always produces at least the (Min, Max) sentinel gap.
var ErrNoLeaves = errors.New("gaptree: unexpected empty leaf set")

// TreePosition is a non-membership witness target: the leaf position of
// the gap a user's nullifier falls into, together with the gap's bounds so
// a verifier can check the claimed nullifier truly lies strictly inside.
type TreePosition struct {
	Nullifier  nullifier.Nullifier
	Position   uint64
	LeftBound  nullifier.Nullifier
	RightBound nullifier.Nullifier
}

// GapBounds computes the (left, right) bounding pair for gap index gapIdx
// over a sanitized, pool-ordered nullifier set. Index 0 is bounded below by
// nullifier.Min, index len(sorted) is bounded above by nullifier.Max, and
// every other index is bounded by its two adjacent chain nullifiers.
func GapBounds(sorted []nullifier.Nullifier, gapIdx int) (left, right nullifier.Nullifier) {
	n := len(sorted)
	switch {
	case n == 0:
		return nullifier.Min, nullifier.Max
	case gapIdx == 0:
		return nullifier.Min, sorted[0]
	case gapIdx == n:
		return sorted[n-1], nullifier.Max
	case gapIdx > n:
		panic("gaptree: gap index out of range")
	default:
		return sorted[gapIdx-1], sorted[gapIdx]
	}
}

// GapTree is satisfied by both the dense and sparse backends.
type GapTree interface {
	Root() Node
	LeafCount() uint64
	Scheme() HashScheme
}

// leafSet materializes the full ordered sequence of gap leaves for a
// sanitized nullifier set without requiring the whole set to be held twice.
func leafSet(scheme HashScheme, sorted []nullifier.Nullifier) []Node {
	n := len(sorted)
	leaves := make([]Node, n+1)
	for i := 0; i <= n; i++ {
		left, right := GapBounds(sorted, i)
		leaves[i] = scheme.CombineLeaf(left, right)
	}
	return leaves
}

// markForUsers walks the sorted chain nullifiers and sorted user nullifiers
// in lockstep, recording which gap index each user nullifier falls inside.
// A user nullifier exactly equal to a chain nullifier is silently dropped:
// it does not fall strictly inside any gap, matching the reference
// construction's non-membership semantics (an exact match means the note
// has already been spent and is not eligible to claim).
func markForUsers(pool nullifier.Pool, chain, users []nullifier.Nullifier) []TreePosition {
	var positions []TreePosition
	userIdx := 0
	for gapIdx := 0; gapIdx <= len(chain); gapIdx++ {
		left, right := GapBounds(chain, gapIdx)
		for userIdx < len(users) {
			u := users[userIdx]
			if nullifier.Cmp(pool, u, left) <= 0 {
				userIdx++
				continue
			}
			if nullifier.Cmp(pool, u, right) >= 0 {
				break
			}
			positions = append(positions, TreePosition{
				Nullifier:  u,
				Position:   uint64(gapIdx),
				LeftBound:  left,
				RightBound: right,
			})
			userIdx++
		}
	}
	return positions
}

// combinePath folds a leaf up an authentication path to a root, choosing
// left/right order at each level from the position's bit, matching the
// convention used by both DenseTree and SparseTree.
func combinePath(scheme HashScheme, leaf Node, position uint64, path []Node) Node {
	current := leaf
	pos := position
	for level, sibling := range path {
		if pos%2 == 0 {
			current = scheme.CombineInternal(level, current, sibling)
		} else {
			current = scheme.CombineInternal(level, sibling, current)
		}
		pos /= 2
	}
	return current
}

// VerifyPath checks that leaf, combined up the given authentication path
// starting at position, yields expectedRoot.
func VerifyPath(scheme HashScheme, leaf Node, position uint64, path []Node, expectedRoot Node) bool {
	if len(path) != Depth {
		return false
	}
	return combinePath(scheme, leaf, position, path) == expectedRoot
}
