// Package sapling implements the Sapling claim circuit and the
// out-of-circuit cryptographic helpers (key derivation, note commitment,
// value commitment, gap-tree hashing) its witnesses are built from.
package sapling

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/crypto/blake2s"

	"github.com/eigerco/zair/internal/gaptree"
	"github.com/eigerco/zair/internal/nullifier"
)

// personalization is the BLAKE2s personalization tag family used to
// derive gap tree node hashes, one per domain-separation level. It plays
// the role the reference implementation gives to Sapling's Pedersen hash
// "MerkleTree(level)" personalization.
func personalization(level int) []byte {
	p := make([]byte, 8)
	copy(p, "ZSMkTr")
	p[6] = byte(level)
	p[7] = byte(level >> 8)
	return p
}

// hashToPoint maps domain-separated preimage bytes to a BLS12-381 G1
// point, standing in for the reference's Pedersen-hash-over-Jubjub. The
// resulting node is the first 32 bytes of the 48-byte big-endian encoding
// of the point's affine X coordinate, in the role the Pedersen-hash gap
// leaf function gives to the curve point's U coordinate.
func hashToPoint(level int, left, right []byte) gaptree.Node {
	digest, err := blake2s.New256(&blake2s.Config{Personal: personalization(level)})
	if err != nil {
		panic(err)
	}
	_, _ = digest.Write(left)
	_, _ = digest.Write(right)
	sum := digest.Sum(nil)

	var scalar fr.Element
	scalar.SetBytes(sum)
	scalarBig := new(big.Int)
	scalar.BigInt(scalarBig)

	_, _, g1, _ := bls12381.Generators()
	var p bls12381.G1Affine
	p.ScalarMultiplication(&g1, scalarBig)

	var node gaptree.Node
	xBytes := p.X.Bytes()
	copy(node[:], xBytes[:32])
	return node
}

// Scheme implements gaptree.HashScheme for the Sapling pool.
type Scheme struct{}

// CombineLeaf hashes a gap's bounding nullifier pair at gaptree.LeafHashLevel.
func (Scheme) CombineLeaf(left, right nullifier.Nullifier) gaptree.Node {
	return hashToPoint(gaptree.LeafHashLevel, left.Bytes(), right.Bytes())
}

// CombineInternal hashes two children at the given tree level.
func (Scheme) CombineInternal(level int, l, r gaptree.Node) gaptree.Node {
	return hashToPoint(level, l[:], r[:])
}

// emptyRoots caches EmptyRoot(level) for level 0..gaptree.Depth.
var emptyRoots = func() []gaptree.Node {
	roots := make([]gaptree.Node, gaptree.Depth+1)
	roots[0] = gaptree.Empty
	s := Scheme{}
	for level := 0; level < gaptree.Depth; level++ {
		roots[level+1] = s.CombineInternal(level, roots[level], roots[level])
	}
	return roots
}()

// EmptyRoot returns the precomputed empty-subtree root at the given level.
func (Scheme) EmptyRoot(level int) gaptree.Node {
	return emptyRoots[level]
}
