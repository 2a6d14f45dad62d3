package orchard

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// ValueCommitmentScheme selects which in-circuit path commits to a note's
// value, mirroring sapling.ValueCommitmentScheme.
type ValueCommitmentScheme uint8

const (
	ValueCommitmentNative ValueCommitmentScheme = iota
	ValueCommitmentSHA256
)

// ParameterSize selects which cached proving/verifying key pair a claim
// uses. It preserves the reference implementation's k=12 (native)/k=17
// (SHA-256 variant) two-tier parameter sizing as an operational selector
// even though this backend no longer makes k a literal circuit-size knob
// (see DESIGN.md).
type ParameterSize uint8

const (
	ParameterSizeNative ParameterSize = 12
	ParameterSizeSHA256 ParameterSize = 17
)

// Claim is the Orchard claim circuit. Its contract mirrors
// sapling.Claim's step list; see Define for the non-membership comparator
// that replaces the reference circuit's explicit Pallas field-element
// decomposition.
type Claim struct {
	SpendingKey          frontend.Variable
	CommitmentRandomness frontend.Variable
	Value                frontend.Variable
	ValueBlinder         frontend.Variable
	Randomizer           frontend.Variable

	NoteAuthPath     [32]frontend.Variable
	NoteAuthPathBits [32]frontend.Variable
	NotePosition     frontend.Variable

	NMLeftNullifier  frontend.Variable
	NMRightNullifier frontend.Variable
	NMAuthPath       [32]frontend.Variable
	NMPositionBits   [32]frontend.Variable

	ValueCommitmentSHA256Randomness frontend.Variable `gnark:",optional"`

	Anchor                frontend.Variable `gnark:",public"`
	NMAnchor              frontend.Variable `gnark:",public"`
	RandomizedKey         frontend.Variable `gnark:",public"`
	ValueCommitment       frontend.Variable `gnark:",public"`
	ValueCommitmentSHA256 frontend.Variable `gnark:",public"`
	AirdropNullifier      frontend.Variable `gnark:",public"`
	TargetID              frontend.Variable `gnark:",public"`

	Scheme ValueCommitmentScheme `gnark:"-"`
}

// Define lays out the Orchard claim constraint system. See
// sapling.Claim.Define for the shared step-by-step rationale.
func (c *Claim) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.SpendingKey)
	ivk := h.Sum()

	h.Reset()
	h.Write(ivk, c.Value, c.CommitmentRandomness)
	noteCommitment := h.Sum()

	cur := noteCommitment
	for i := 0; i < len(c.NoteAuthPath); i++ {
		left, right := api.Select(c.NoteAuthPathBits[i], c.NoteAuthPath[i], cur), api.Select(c.NoteAuthPathBits[i], cur, c.NoteAuthPath[i])
		h.Reset()
		h.Write(left, right)
		cur = h.Sum()
	}
	api.AssertIsEqual(cur, c.Anchor)

	h.Reset()
	h.Write(ivk, noteCommitment, c.NotePosition)
	nf := h.Sum()

	// nf, like every frontend.Variable, is already a canonical element of
	// the circuit's scalar field (gnark reduces witness assignments mod p
	// before the comparator ever sees them), so there is no separate
	// msb/mid/low decomposition to re-derive canonicity from: the
	// bit-decomposition comparator below operates directly on that
	// canonical representative. left <= nf and nf <= right, combined with
	// AssertIsDifferent on both boundaries, enforces the strict ordering
	// left < nf < right the gap bounds are supposed to prove.
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

	h.Reset()
	h.Write(ivk, c.TargetID)
	airdropNf := h.Sum()
	api.AssertIsEqual(airdropNf, c.AirdropNullifier)

	rk := api.Add(c.SpendingKey, c.Randomizer)
	api.AssertIsEqual(rk, c.RandomizedKey)

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
