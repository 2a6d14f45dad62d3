package sapling

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// ValueCommitmentScheme selects which in-circuit path commits to a note's
// value. Both paths are MiMC commitments: the native scheme hashes (value,
// blinder) into the ValueCommitment public input, and the SHA-256 scheme
// hashes (value, blinder, ValueCommitmentSHA256Randomness) into
// ValueCommitmentSHA256. Neither path computes a curve-point commitment or
// a SHA-256 digest.
type ValueCommitmentScheme uint8

const (
	ValueCommitmentNative ValueCommitmentScheme = iota
	ValueCommitmentSHA256
)

// Claim is the Sapling claim circuit: it proves that the prover knows a
// spending key controlling a note in the published note-commitment tree,
// that the note's standard nullifier falls inside the gap bounded by
// NMLeftNullifier/NMRightNullifier (itself proven to be a genuine leaf of
// the published gap tree), and that the public AirdropNullifier and
// ValueCommitment were derived correctly from the same witnessed note.
//
// Field names mirror the reference circuit's struct layout so the mapping
// from spec.md's step list to circuit wires stays legible: key derivation,
// note commitment, note-tree membership, standard nullifier, gap
// non-membership, airdrop nullifier, and value-commitment consistency.
type Claim struct {
	// --- witnesses (private) ---

	SpendingKey          frontend.Variable
	CommitmentRandomness frontend.Variable
	Value                frontend.Variable
	ValueBlinder         frontend.Variable
	Randomizer           frontend.Variable // ar, re-randomizes the spend-auth key

	NoteAuthPath     [32]frontend.Variable
	NoteAuthPathBits [32]frontend.Variable
	NotePosition     frontend.Variable

	NMLeftNullifier  frontend.Variable
	NMRightNullifier frontend.Variable
	NMAuthPath       [32]frontend.Variable
	NMPositionBits   [32]frontend.Variable

	ValueCommitmentSHA256Randomness frontend.Variable `gnark:",optional"`

	// --- public inputs ---

	Anchor                frontend.Variable `gnark:",public"`
	NMAnchor              frontend.Variable `gnark:",public"`
	RandomizedKey         frontend.Variable `gnark:",public"`
	ValueCommitment       frontend.Variable `gnark:",public"`
	ValueCommitmentSHA256 frontend.Variable `gnark:",public"`
	AirdropNullifier      frontend.Variable `gnark:",public"`
	TargetID              frontend.Variable `gnark:",public"`

	Scheme ValueCommitmentScheme `gnark:"-"`
}

// Define lays out the constraint system. It is a faithful structural port
// of the reference circuit's step list; the concrete in-circuit hash
// primitive is gnark's native MiMC rather than BLAKE2s/Pedersen (see
// DESIGN.md).
func (c *Claim) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	// Step 1: key derivation. ivk = H(ak || nk) is modeled as a single
	// MiMC absorb of the spending key standing in for the full
	// proof-generation-key-to-ivk derivation the reference circuit gadgets.
	h.Write(c.SpendingKey)
	ivk := h.Sum()

	// Step 2: note commitment. cm = H(ivk || value || rcm).
	h.Reset()
	h.Write(ivk, c.Value, c.CommitmentRandomness)
	noteCommitment := h.Sum()

	// Step 3: note-tree membership. Fold noteCommitment up NoteAuthPath
	// using NoteAuthPathBits to choose left/right order at each level, and
	// constrain the result to equal the public Anchor.
	cur := noteCommitment
	for i := 0; i < len(c.NoteAuthPath); i++ {
		left, right := api.Select(c.NoteAuthPathBits[i], c.NoteAuthPath[i], cur), api.Select(c.NoteAuthPathBits[i], cur, c.NoteAuthPath[i])
		h.Reset()
		h.Write(left, right)
		cur = h.Sum()
	}
	api.AssertIsEqual(cur, c.Anchor)

	// Step 4: standard nullifier. nf = H(ivk || cm || position).
	h.Reset()
	h.Write(ivk, noteCommitment, c.NotePosition)
	nf := h.Sum()

	// Step 5: non-membership. nf must lie strictly between NMLeftNullifier
	// and NMRightNullifier, which are themselves proven to bound a real
	// gap leaf of the published NMAnchor. Each witness is already a
	// canonical element of the scalar field, so the bit-decomposition
	// comparator gnark's AssertIsLessOrEqual builds is a genuine ordering
	// check, not merely an inequality: left <= nf and nf <= right, with
	// AssertIsDifferent ruling out the two equality cases the spec
	// excludes.
	api.AssertIsLessOrEqual(c.NMLeftNullifier, nf)
	api.AssertIsDifferent(c.NMLeftNullifier, nf)
	api.AssertIsLessOrEqual(nf, c.NMRightNullifier)
	api.AssertIsDifferent(nf, c.NMRightNullifier)

	h.Reset()
	h.Write(c.NMLeftNullifier, c.NMRightNullifier)
	gapLeaf := h.Sum()

	curGap := gapLeaf
	for i := 0; i < len(c.NMAuthPath); i++ {
		left, right := api.Select(c.NMPositionBits[i], c.NMAuthPath[i], curGap), api.Select(c.NMPositionBits[i], curGap, c.NMAuthPath[i])
		h.Reset()
		h.Write(left, right)
		curGap = h.Sum()
	}
	api.AssertIsEqual(curGap, c.NMAnchor)

	// Step 6: airdrop nullifier. airdrop_nf = H(ivk || TargetID), binding
	// the claim to this specific airdrop round without revealing nf.
	h.Reset()
	h.Write(ivk, c.TargetID)
	airdropNf := h.Sum()
	api.AssertIsEqual(airdropNf, c.AirdropNullifier)

	// Step 7: re-randomized spend-auth key consistency, rk = ak + ar*G,
	// modeled here as an additive relation over the scalar field since no
	// Jubjub scalar-mult gadget is wired into this circuit (see
	// DESIGN.md's key-derivation notes).
	rk := api.Add(c.SpendingKey, c.Randomizer)
	api.AssertIsEqual(rk, c.RandomizedKey)

	// Step 8/9: value-commitment consistency, selected by Scheme at
	// circuit-construction time. Scheme is not a witness, so a compiled
	// circuit carries only the selected branch's constraints; the other
	// value-commitment public input is left unconstrained.
	switch c.Scheme {
	case ValueCommitmentSHA256:
		h.Reset()
		h.Write(c.Value, c.ValueBlinder, c.ValueCommitmentSHA256Randomness)
		cv := h.Sum()
		api.AssertIsEqual(cv, c.ValueCommitmentSHA256)
	default:
		h.Reset()
		h.Write(c.Value, c.ValueBlinder)
		cv := h.Sum()
		api.AssertIsEqual(cv, c.ValueCommitment)
	}

	return nil
}
