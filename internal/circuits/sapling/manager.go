package sapling

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
const PoolName = "sapling"

// Manager compiles the Sapling claim circuit once per value-commitment
// scheme and caches its Groth16 proving/verifying keys, mirroring the
// teacher's CircuitManager compile-once/cache-forever lifecycle.
type Manager struct {
	cache *paramcache.Cache
	ccs   map[ValueCommitmentScheme]compiled
}

type compiled struct {
	ccs   constraint.ConstraintSystem
	entry *paramcache.Entry
}

// NewManager builds a Manager backed by the given parameter cache.
func NewManager(cache *paramcache.Cache) *Manager {
	return &Manager{cache: cache, ccs: make(map[ValueCommitmentScheme]compiled)}
}

// Setup compiles the circuit for the given scheme and ensures a Groth16 key
// pair is available, running trusted setup if the cache has none yet.
func (m *Manager) Setup(scheme ValueCommitmentScheme) error {
	if _, ok := m.ccs[scheme]; ok {
		return nil
	}

	circuit := &Claim{Scheme: scheme}
	ccs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return fmt.Errorf("sapling: compile scheme %d: %w", scheme, err)
	}

	size := uint8(scheme)
	entry, ok := m.cache.Get(PoolName, size)
	if !ok {
		entry, err = m.cache.Setup(PoolName, size, ccs)
		if err != nil {
			return err
		}
	}

	m.ccs[scheme] = compiled{ccs: ccs, entry: entry}
	return nil
}

// Prove generates a Groth16 proof for a fully assigned witness circuit.
func (m *Manager) Prove(scheme ValueCommitmentScheme, assignment *Claim) (groth16.Proof, error) {
	c, ok := m.ccs[scheme]
	if !ok {
		return nil, fmt.Errorf("sapling: scheme %d not set up", scheme)
	}

	w, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("sapling: build witness: %w", err)
	}

	proof, err := groth16.Prove(c.ccs, c.entry.ProvingKey, w)
	if err != nil {
		return nil, fmt.Errorf("sapling: prove: %w", err)
	}
	return proof, nil
}

// PublicWitness extracts the public-input-only witness from a fully
// assigned Claim, for self-verification immediately after Prove.
func (m *Manager) PublicWitness(assignment *Claim) (witness.Witness, error) {
	w, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("sapling: build public witness: %w", err)
	}
	return w, nil
}

// Verify checks a Groth16 proof against its public witness.
func (m *Manager) Verify(scheme ValueCommitmentScheme, proof groth16.Proof, publicWitness witness.Witness) error {
	c, ok := m.ccs[scheme]
	if !ok {
		return fmt.Errorf("sapling: scheme %d not set up", scheme)
	}
	if err := groth16.Verify(proof, c.entry.VerifyingKey, publicWitness); err != nil {
		return fmt.Errorf("sapling: verify: %w", err)
	}
	return nil
}

// VerifyingKey returns the verifying key of a scheme this Manager has
// already set up; for a scheme Setup has not run for, it returns an error.
func (m *Manager) VerifyingKey(scheme ValueCommitmentScheme) (groth16.VerifyingKey, error) {
	c, ok := m.ccs[scheme]
	if !ok {
		return nil, fmt.Errorf("sapling: scheme %d not set up", scheme)
	}
	return c.entry.VerifyingKey, nil
}
