package orchard

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/eigerco/zair/internal/circuits/paramcache"
)

// PoolName tags cache entries and log lines for this pool.
const PoolName = "orchard"

// Manager compiles the Orchard claim circuit once per ParameterSize and
// caches its Groth16 proving/verifying keys.
type Manager struct {
	cache *paramcache.Cache
	ccs   map[ParameterSize]compiled
}

type compiled struct {
	ccs   constraint.ConstraintSystem
	entry *paramcache.Entry
}

// NewManager builds a Manager backed by the given parameter cache.
func NewManager(cache *paramcache.Cache) *Manager {
	return &Manager{cache: cache, ccs: make(map[ParameterSize]compiled)}
}

func schemeForSize(size ParameterSize) ValueCommitmentScheme {
	if size == ParameterSizeSHA256 {
		return ValueCommitmentSHA256
	}
	return ValueCommitmentNative
}

// Setup compiles the circuit for the given parameter size and ensures a
// Groth16 key pair is available.
func (m *Manager) Setup(size ParameterSize) error {
	if _, ok := m.ccs[size]; ok {
		return nil
	}

	circuit := &Claim{Scheme: schemeForSize(size)}
	ccs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return fmt.Errorf("orchard: compile k=%d: %w", size, err)
	}

	entry, ok := m.cache.Get(PoolName, uint8(size))
	if !ok {
		entry, err = m.cache.Setup(PoolName, uint8(size), ccs)
		if err != nil {
			return err
		}
	}

	m.ccs[size] = compiled{ccs: ccs, entry: entry}
	return nil
}

// Prove generates a Groth16 proof for a fully assigned witness circuit.
func (m *Manager) Prove(size ParameterSize, assignment *Claim) (groth16.Proof, error) {
	c, ok := m.ccs[size]
	if !ok {
		return nil, fmt.Errorf("orchard: k=%d not set up", size)
	}

	w, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("orchard: build witness: %w", err)
	}

	proof, err := groth16.Prove(c.ccs, c.entry.ProvingKey, w)
	if err != nil {
		return nil, fmt.Errorf("orchard: prove: %w", err)
	}
	return proof, nil
}

// PublicWitness extracts the public-input-only witness from a fully
// assigned Claim, for self-verification immediately after Prove.
func (m *Manager) PublicWitness(assignment *Claim) (witness.Witness, error) {
	w, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("orchard: build public witness: %w", err)
	}
	return w, nil
}

// Verify checks a Groth16 proof against its public witness.
func (m *Manager) Verify(size ParameterSize, proof groth16.Proof, publicWitness witness.Witness) error {
	c, ok := m.ccs[size]
	if !ok {
		return fmt.Errorf("orchard: k=%d not set up", size)
	}
	if err := groth16.Verify(proof, c.entry.VerifyingKey, publicWitness); err != nil {
		return fmt.Errorf("orchard: verify: %w", err)
	}
	return nil
}

// VerifyingKey exposes the cached verifying key for the verifier component.
func (m *Manager) VerifyingKey(size ParameterSize) (groth16.VerifyingKey, error) {
	c, ok := m.ccs[size]
	if !ok {
		return nil, fmt.Errorf("orchard: k=%d not set up", size)
	}
	return c.entry.VerifyingKey, nil
}
