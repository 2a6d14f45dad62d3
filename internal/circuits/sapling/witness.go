package sapling

import (
	"math/big"

	gnarkhash "github.com/consensys/gnark-crypto/hash"
)

// mimcHash runs gnark-crypto's pure-Go MiMC/BLS12-381 permutation over the
// given field elements, reproducing bit-for-bit what the in-circuit
// mimc.MiMC gadget computes for the same inputs. Witness-building code
// must use this helper (not any general-purpose hash) for every value that
// feeds a circuit wire, since the circuit only accepts values produced by
// this exact function.
func mimcHash(inputs ...*big.Int) *big.Int {
	h := gnarkhash.MIMC_BLS12_381.New()
	for _, in := range inputs {
		b := make([]byte, 32)
		in.FillBytes(b)
		_, _ = h.Write(b)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// Opening holds the private values a Sapling claim witness is built from,
// prior to circuit assignment.
type Opening struct {
	SpendingKey          *big.Int
	CommitmentRandomness *big.Int
	Value                *big.Int
	ValueBlinder         *big.Int
	Randomizer           *big.Int
	NotePosition         uint64
	NoteAuthPath         [32]*big.Int
	NoteAuthPathBits     [32]bool

	NMLeftNullifier  *big.Int
	NMRightNullifier *big.Int
	NMAuthPath       [32]*big.Int
	NMPositionBits   [32]bool

	TargetID *big.Int
	Scheme   ValueCommitmentScheme
}

// Derived holds the public values witness-building computes alongside the
// assignment, so callers (the claim builder, and self-verification) never
// recompute them a second, possibly inconsistent, way.
type Derived struct {
	IVK              *big.Int
	NoteCommitment   *big.Int
	Nullifier        *big.Int
	AirdropNullifier *big.Int
	RandomizedKey    *big.Int
	ValueCommitment  *big.Int
	Anchor           *big.Int
	NMAnchor         *big.Int
}

// Derive recomputes every public/intermediate value an Opening implies,
// using the same mimcHash folding order as Claim.Define.
func Derive(o *Opening) *Derived {
	ivk := mimcHash(o.SpendingKey)
	noteCommitment := mimcHash(ivk, o.Value, o.CommitmentRandomness)

	anchor := noteCommitment
	for i := 0; i < len(o.NoteAuthPath); i++ {
		if o.NoteAuthPathBits[i] {
			anchor = mimcHash(o.NoteAuthPath[i], anchor)
		} else {
			anchor = mimcHash(anchor, o.NoteAuthPath[i])
		}
	}

	nf := mimcHash(ivk, noteCommitment, big.NewInt(int64(o.NotePosition)))

	gapLeaf := mimcHash(o.NMLeftNullifier, o.NMRightNullifier)
	nmAnchor := gapLeaf
	for i := 0; i < len(o.NMAuthPath); i++ {
		if o.NMPositionBits[i] {
			nmAnchor = mimcHash(o.NMAuthPath[i], nmAnchor)
		} else {
			nmAnchor = mimcHash(nmAnchor, o.NMAuthPath[i])
		}
	}

	airdropNf := mimcHash(ivk, o.TargetID)
	rk := new(big.Int).Add(o.SpendingKey, o.Randomizer)

	var cv *big.Int
	if o.Scheme == ValueCommitmentSHA256 {
		cv = mimcHash(o.Value, o.ValueBlinder, big.NewInt(0))
	} else {
		cv = mimcHash(o.Value, o.ValueBlinder)
	}

	return &Derived{
		IVK:              ivk,
		NoteCommitment:   noteCommitment,
		Nullifier:         nf,
		AirdropNullifier: airdropNf,
		RandomizedKey:    rk,
		ValueCommitment:  cv,
		Anchor:           anchor,
		NMAnchor:         nmAnchor,
	}
}

// Assignment builds a fully assigned Claim circuit from an Opening and its
// Derived values, ready to pass to Manager.Prove.
func Assignment(o *Opening, d *Derived) *Claim {
	c := &Claim{Scheme: o.Scheme}

	c.SpendingKey = o.SpendingKey
	c.CommitmentRandomness = o.CommitmentRandomness
	c.Value = o.Value
	c.ValueBlinder = o.ValueBlinder
	c.Randomizer = o.Randomizer
	c.NotePosition = big.NewInt(int64(o.NotePosition))

	for i := range o.NoteAuthPath {
		c.NoteAuthPath[i] = o.NoteAuthPath[i]
		c.NoteAuthPathBits[i] = boolVar(o.NoteAuthPathBits[i])
	}

	c.NMLeftNullifier = o.NMLeftNullifier
	c.NMRightNullifier = o.NMRightNullifier
	for i := range o.NMAuthPath {
		c.NMAuthPath[i] = o.NMAuthPath[i]
		c.NMPositionBits[i] = boolVar(o.NMPositionBits[i])
	}

	if o.Scheme == ValueCommitmentSHA256 {
		c.ValueCommitmentSHA256Randomness = big.NewInt(0)
		c.ValueCommitmentSHA256 = d.ValueCommitment
		c.ValueCommitment = big.NewInt(0)
	} else {
		c.ValueCommitment = d.ValueCommitment
		c.ValueCommitmentSHA256 = big.NewInt(0)
	}

	c.Anchor = d.Anchor
	c.NMAnchor = d.NMAnchor
	c.RandomizedKey = d.RandomizedKey
	c.AirdropNullifier = d.AirdropNullifier
	c.TargetID = o.TargetID

	return c
}

func boolVar(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// PublicAssignment builds a Claim populated with only the public inputs a
// verifier has: the note-commitment anchor and gap-tree root from the
// published AirdropConfiguration, and rk/cv/airdrop_nullifier/target_id
// from a ProofRecord. Private fields are filled with zero placeholders;
// Manager.PublicWitness only walks the `gnark:",public"` fields, so these
// never reach the verification equation.
func PublicAssignment(anchor, nmAnchor, rk, cv, airdropNf, targetID *big.Int, scheme ValueCommitmentScheme) *Claim {
	c := &Claim{Scheme: scheme}

	c.SpendingKey = big.NewInt(0)
	c.CommitmentRandomness = big.NewInt(0)
	c.Value = big.NewInt(0)
	c.ValueBlinder = big.NewInt(0)
	c.Randomizer = big.NewInt(0)
	c.NotePosition = big.NewInt(0)
	for i := range c.NoteAuthPath {
		c.NoteAuthPath[i] = big.NewInt(0)
		c.NoteAuthPathBits[i] = big.NewInt(0)
	}
	c.NMLeftNullifier = big.NewInt(0)
	c.NMRightNullifier = big.NewInt(0)
	for i := range c.NMAuthPath {
		c.NMAuthPath[i] = big.NewInt(0)
		c.NMPositionBits[i] = big.NewInt(0)
	}
	c.ValueCommitmentSHA256Randomness = big.NewInt(0)

	c.Anchor = anchor
	c.NMAnchor = nmAnchor
	c.RandomizedKey = rk
	c.AirdropNullifier = airdropNf
	c.TargetID = targetID

	if scheme == ValueCommitmentSHA256 {
		c.ValueCommitmentSHA256 = cv
		c.ValueCommitment = big.NewInt(0)
	} else {
		c.ValueCommitment = cv
		c.ValueCommitmentSHA256 = big.NewInt(0)
	}

	return c
}
