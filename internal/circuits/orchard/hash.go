// Package orchard implements the Orchard claim circuit and the
// out-of-circuit cryptographic helpers its witnesses are built from. See
// DESIGN.md's "Orchard/Halo2-Pasta substitution" entry for why this
// package expresses the Orchard contract over the same BLS12-381/Groth16
// backend used for Sapling rather than Halo2/IPA over Pasta.
package orchard

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/crypto/blake2s"

	"github.com/eigerco/zair/internal/gaptree"
	"github.com/eigerco/zair/internal/nullifier"
)

// personalization derives a level-tagged BLAKE2s personalization string
// standing in for Sinsemilla's domain-separated "SinsemillaQ" tag family.
func personalization(level int) []byte {
	p := make([]byte, 8)
	copy(p, "ZOMkTr")
	p[6] = byte(level)
	p[7] = byte(level >> 8)
	return p
}

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

// Scheme implements gaptree.HashScheme for the Orchard pool.
type Scheme struct{}

// CombineLeaf hashes a gap's bounding nullifier pair at gaptree.LeafHashLevel.
func (Scheme) CombineLeaf(left, right nullifier.Nullifier) gaptree.Node {
	return hashToPoint(gaptree.LeafHashLevel, left.Bytes(), right.Bytes())
}

// CombineInternal hashes two children at the given tree level.
func (Scheme) CombineInternal(level int, l, r gaptree.Node) gaptree.Node {
	return hashToPoint(level, l[:], r[:])
}

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
