package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/eigerco/zair/internal/nullifier"
)

// noteRecord is FoundNote's JSON wire shape. Trial-decrypting compact-block
// outputs with a Sapling/Orchard viewing key is a large, curve-specific
// subsystem of its own (incremental Poseidon/BLAKE2b KDFs, ChaCha20-Poly1305
// note plaintexts) that spec.md leaves to the wallet the claimant already
// uses; FileDiscovery lets that wallet hand its findings to the claim
// builder as a flat file instead, the same boundary chainoracle draws
// around the lightwalletd transport.
type noteRecord struct {
	Pool              string   `json:"pool"`
	Height            uint64   `json:"height"`
	Scope             string   `json:"scope"`
	StandardNullifier string   `json:"standard_nullifier"`
	NotePosition      uint64   `json:"note_position"`
	SpendingKey       string   `json:"spending_key"`
	Randomness        string   `json:"commitment_randomness"`
	Value             string   `json:"value"`
	AuthPath          []string `json:"note_auth_path"`
	AuthPathBits      []bool   `json:"note_auth_path_bits"`
}

// FileDiscovery implements NoteDiscovery by replaying a JSON file of
// already-decrypted notes, produced out-of-band by a viewing-key-holding
// wallet.
type FileDiscovery struct {
	Path string
}

// Discover reads the notes file and yields every note whose height falls
// in [start, end], in file order.
func (d FileDiscovery) Discover(ctx context.Context, start, end uint64, fn func(FoundNote) error) error {
	b, err := os.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("claim: read notes file: %w", err)
	}
	var records []noteRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return fmt.Errorf("claim: decode notes file: %w", err)
	}

	for _, rec := range records {
		if rec.Height < start || rec.Height > end {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		found, err := rec.toFoundNote()
		if err != nil {
			return fmt.Errorf("claim: note at height %d: %w", rec.Height, err)
		}
		if err := fn(found); err != nil {
			return err
		}
	}
	return nil
}

func (rec noteRecord) toFoundNote() (FoundNote, error) {
	var found FoundNote

	switch rec.Pool {
	case "sapling":
		found.Pool = nullifier.Sapling
	case "orchard":
		found.Pool = nullifier.Orchard
	default:
		return FoundNote{}, fmt.Errorf("unknown pool %q", rec.Pool)
	}

	switch rec.Scope {
	case "internal":
		found.Scope = ScopeInternal
	default:
		found.Scope = ScopeExternal
	}

	found.Height = rec.Height
	found.NotePosition = rec.NotePosition

	nf, err := hexToNullifier(rec.StandardNullifier)
	if err != nil {
		return FoundNote{}, fmt.Errorf("standard_nullifier: %w", err)
	}
	found.StandardNullifier = nf

	found.SpendingKey, err = parseBigInt(rec.SpendingKey)
	if err != nil {
		return FoundNote{}, fmt.Errorf("spending_key: %w", err)
	}
	found.CommitmentRandomness, err = parseBigInt(rec.Randomness)
	if err != nil {
		return FoundNote{}, fmt.Errorf("commitment_randomness: %w", err)
	}
	found.Value, err = parseBigInt(rec.Value)
	if err != nil {
		return FoundNote{}, fmt.Errorf("value: %w", err)
	}

	if len(rec.AuthPath) != len(found.NoteAuthPath) || len(rec.AuthPathBits) != len(found.NoteAuthPathBits) {
		return FoundNote{}, fmt.Errorf("note_auth_path must have exactly %d entries", len(found.NoteAuthPath))
	}
	for i := range found.NoteAuthPath {
		v, err := parseBigInt(rec.AuthPath[i])
		if err != nil {
			return FoundNote{}, fmt.Errorf("note_auth_path[%d]: %w", i, err)
		}
		found.NoteAuthPath[i] = v
		found.NoteAuthPathBits[i] = rec.AuthPathBits[i]
	}

	return found, nil
}

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex integer %q", s)
	}
	return v, nil
}

func hexToNullifier(s string) (nullifier.Nullifier, error) {
	var n nullifier.Nullifier
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return n, fmt.Errorf("invalid hex nullifier %q", s)
	}
	bs := b.Bytes()
	if len(bs) > len(n) {
		return n, fmt.Errorf("nullifier %q overflows 32 bytes", s)
	}
	copy(n[len(n)-len(bs):], bs)
	return n, nil
}
