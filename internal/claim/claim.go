// Package claim implements the claim builder: it scans the chain with a
// viewing key, pairs each found note with its gap in the published
// snapshot tree, assembles circuit witnesses, invokes the pool's prover,
// self-verifies every proof, and emits the claim-proofs and claim-secrets
// output files.
package claim

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sort"

	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eigerco/zair/internal/chainoracle"
	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/gaptree"
	"github.com/eigerco/zair/internal/nullifier"
	"github.com/eigerco/zair/internal/snapshot"
	"github.com/eigerco/zair/pkg/types"
)

// Scope distinguishes a found note's derivation path, external (payment
// address) vs internal (change/shielding) per ZIP-32.
type Scope int

const (
	ScopeExternal Scope = iota
	ScopeInternal
)

// FoundNote is what a NoteDiscovery collaborator yields for one candidate
// note: everything the claim builder needs to build a circuit witness,
// except the fresh per-claim randomness (randomizer, value blinder) which
// the builder itself generates.
type FoundNote struct {
	Pool              nullifier.Pool
	Height            uint64
	Scope             Scope
	StandardNullifier nullifier.Nullifier
	NotePosition      uint64

	SpendingKey          *big.Int
	CommitmentRandomness *big.Int
	Value                *big.Int

	// NoteAuthPath/NoteAuthPathBits is the note-commitment-tree
	// authentication path at NotePosition, supplied by the discovery
	// collaborator's bridge-tree witness tracker.
	NoteAuthPath     [32]*big.Int
	NoteAuthPathBits [32]bool
}

// NoteDiscovery decrypts compact-block outputs with a viewing key and
// yields every note it can spend, with tree positions already resolved.
type NoteDiscovery interface {
	Discover(ctx context.Context, start, end uint64, fn func(FoundNote) error) error
}

// Checkpoint is the persisted scan progress for one UFVK, loaded and stored
// by ReadCheckpoint and WriteCheckpoint. Builder.Build calls neither, so
// Config.CheckpointPath has no effect and every run scans its whole range.
type Checkpoint struct {
	LastHeight uint64 `json:"last_height"`
}

// ReadCheckpoint loads a checkpoint file, returning a zero Checkpoint if
// none exists yet.
func ReadCheckpoint(path string) (Checkpoint, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// WriteCheckpoint persists scan progress by writing a per-process temp
// file and renaming it over path, so a crash never leaves a torn
// checkpoint file.
func WriteCheckpoint(path string, cp Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Config configures one claim-building run.
type Config struct {
	Network         types.Network
	Birthday        uint64
	SnapshotStart   uint64
	SnapshotEnd     uint64
	SnapshotDir     string
	CheckpointPath  string
	SaplingTargetID string
	OrchardTargetID string
	SaplingScheme   sapling.ValueCommitmentScheme
	OrchardSize     orchard.ParameterSize
	OutDir          string
}

// Builder runs the claim pipeline for one UFVK against a published
// AirdropConfiguration.
type Builder struct {
	Trees     chainoracle.TreeStateSource
	Discovery NoteDiscovery
	Retry     chainoracle.RetryPolicy

	SaplingManager *sapling.Manager
	OrchardManager *orchard.Manager

	Log *logrus.Entry

	cfgSaplingScheme sapling.ValueCommitmentScheme
	cfgOrchardSize   orchard.ParameterSize
}

// NewBuilder constructs a Builder with the default retry policy.
func NewBuilder(trees chainoracle.TreeStateSource, discovery NoteDiscovery, saplingMgr *sapling.Manager, orchardMgr *orchard.Manager, log *logrus.Entry) *Builder {
	return &Builder{
		Trees:          trees,
		Discovery:      discovery,
		Retry:          chainoracle.DefaultRetryPolicy(),
		SaplingManager: saplingMgr,
		OrchardManager: orchardMgr,
		Log:            log,
	}
}

// Build runs the full pipeline: scan, partition by pool, build marked gap
// trees, assemble witnesses, prove, self-verify, and emit the two output
// files. Sapling and Orchard are processed concurrently.
func (b *Builder) Build(ctx context.Context, cfg Config, cfgAirdrop *types.AirdropConfiguration) (*types.ClaimProofsOutput, *types.ClaimSecretsOutput, error) {
	b.cfgSaplingScheme = cfg.SaplingScheme
	b.cfgOrchardSize = cfg.OrchardSize

	start := cfg.Birthday
	if cfg.SnapshotStart > start {
		start = cfg.SnapshotStart
	}
	if cfg.Birthday > cfg.SnapshotEnd {
		return nil, nil, fmt.Errorf("claim: birthday %d is after snapshot end %d", cfg.Birthday, cfg.SnapshotEnd)
	}

	var treeState chainoracle.TreeState
	err := chainoracle.Do(ctx, b.Retry, b.Log, func(ctx context.Context) error {
		var err error
		treeState, err = b.Trees.TreeStateAt(ctx, start-1)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("claim: fetch tree state at %d: %w", start-1, err)
	}
	_ = treeState // seeds the discovery collaborator's own witness tracker

	var saplingNotes, orchardNotes []FoundNote
	err = b.Discovery.Discover(ctx, start, cfg.SnapshotEnd, func(fn FoundNote) error {
		switch fn.Pool {
		case nullifier.Sapling:
			saplingNotes = append(saplingNotes, fn)
		case nullifier.Orchard:
			orchardNotes = append(orchardNotes, fn)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("claim: scan: %w", err)
	}

	var (
		saplingProofs  []types.ProofRecord
		saplingSecrets []types.SecretRecord
		orchardProofs  []types.ProofRecord
		orchardSecrets []types.SecretRecord
	)

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		saplingProofs, saplingSecrets, err = b.buildPool(cfg, nullifier.Sapling, saplingNotes, cfg.SaplingTargetID, cfgAirdrop)
		return err
	})
	g.Go(func() error {
		var err error
		orchardProofs, orchardSecrets, err = b.buildPool(cfg, nullifier.Orchard, orchardNotes, cfg.OrchardTargetID, cfgAirdrop)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sortProofsByAirdropNullifier(saplingProofs)
	sortProofsByAirdropNullifier(orchardProofs)

	proofsOut := &types.ClaimProofsOutput{Sapling: saplingProofs, Orchard: orchardProofs}
	secretsOut := &types.ClaimSecretsOutput{Sapling: saplingSecrets, Orchard: orchardSecrets}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("claim: create output dir: %w", err)
	}
	if err := writeProofsFile(filepath.Join(cfg.OutDir, "claim-proofs.json"), proofsOut); err != nil {
		return nil, nil, fmt.Errorf("claim: write proofs file: %w", err)
	}
	if err := writeSecretsFile(filepath.Join(cfg.OutDir, "claim-secrets.json"), secretsOut); err != nil {
		return nil, nil, fmt.Errorf("claim: write secrets file: %w", err)
	}

	return proofsOut, secretsOut, nil
}

func (b *Builder) buildPool(cfg Config, pool nullifier.Pool, notes []FoundNote, targetID string, cfgAirdrop *types.AirdropConfiguration) ([]types.ProofRecord, []types.SecretRecord, error) {
	if len(notes) == 0 {
		return nil, nil, nil
	}

	listPath := filepath.Join(cfg.SnapshotDir, fmt.Sprintf("%s-%d.bin", poolFileName(pool), cfg.SnapshotEnd))
	chainRaw, err := snapshot.ReadSortedList(listPath)
	if err != nil {
		return nil, nil, fmt.Errorf("claim: read %s snapshot list: %w", poolFileName(pool), err)
	}
	chainSet, err := nullifier.Sanitize(pool, chainRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("claim: sanitize %s snapshot list: %w", poolFileName(pool), err)
	}

	users := make([]nullifier.Nullifier, len(notes))
	byNullifier := make(map[nullifier.Nullifier]FoundNote, len(notes))
	for i, n := range notes {
		users[i] = n.StandardNullifier
		byNullifier[n.StandardNullifier] = n
	}

	scheme := poolScheme(pool)
	tree, positions, err := gaptree.NewSparseTree(scheme, pool, chainSet, users)
	if err != nil {
		return nil, nil, fmt.Errorf("claim: build %s gap tree: %w", poolFileName(pool), err)
	}

	root := tree.Root()
	if err := checkRootMatches(pool, root, cfgAirdrop); err != nil {
		return nil, nil, err
	}

	if b.Log != nil {
		b.Log.WithFields(logrus.Fields{
			"pool":           poolFileName(pool),
			"found_notes":    len(notes),
			"marked_in_gaps": len(positions),
			"spent_at_snapshot": len(notes) - len(positions),
		}).Info("claim: marked gap tree built")
	}

	targetIDBig := new(big.Int).SetBytes([]byte(targetID))

	proofs := make([]types.ProofRecord, 0, len(positions))
	secrets := make([]types.SecretRecord, 0, len(positions))

	for _, pos := range positions {
		found, ok := byNullifier[pos.Nullifier]
		if !ok {
			continue
		}

		path, err := tree.Witness(pos.Position)
		if err != nil {
			return nil, nil, fmt.Errorf("claim: witness for marked position %d: %w", pos.Position, err)
		}

		proof, secret, err := b.proveOne(pool, found, pos, path, targetIDBig)
		if err != nil {
			return nil, nil, err
		}
		proofs = append(proofs, proof)
		secrets = append(secrets, secret)
	}

	return proofs, secrets, nil
}

func (b *Builder) proveOne(pool nullifier.Pool, found FoundNote, pos gaptree.TreePosition, path []gaptree.Node, targetID *big.Int) (types.ProofRecord, types.SecretRecord, error) {
	randomizer, err := randomFieldElement()
	if err != nil {
		return types.ProofRecord{}, types.SecretRecord{}, err
	}
	valueBlinder, err := randomFieldElement()
	if err != nil {
		return types.ProofRecord{}, types.SecretRecord{}, err
	}

	var nmPath [32]*big.Int
	var nmBits [32]bool
	for i := 0; i < gaptree.Depth; i++ {
		nmPath[i] = new(big.Int).SetBytes(path[i][:])
		nmBits[i] = (pos.Position>>uint(i))&1 != 0
	}

	leftBig := new(big.Int).SetBytes(pos.LeftBound.Bytes())
	rightBig := new(big.Int).SetBytes(pos.RightBound.Bytes())

	switch pool {
	case nullifier.Sapling:
		o := &sapling.Opening{
			SpendingKey:          found.SpendingKey,
			CommitmentRandomness: found.CommitmentRandomness,
			Value:                found.Value,
			ValueBlinder:         valueBlinder,
			Randomizer:           randomizer,
			NotePosition:         found.NotePosition,
			NoteAuthPath:         found.NoteAuthPath,
			NoteAuthPathBits:     found.NoteAuthPathBits,
			NMLeftNullifier:      leftBig,
			NMRightNullifier:     rightBig,
			NMAuthPath:           nmPath,
			NMPositionBits:       nmBits,
			TargetID:             targetID,
			Scheme:               b.saplingSchemeFor(),
		}
		d := sapling.Derive(o)
		assignment := sapling.Assignment(o, d)

		proof, err := b.SaplingManager.Prove(o.Scheme, assignment)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, fmt.Errorf("claim: sapling prove: %w", err)
		}
		pw, err := b.SaplingManager.PublicWitness(assignment)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, err
		}
		if err := b.SaplingManager.Verify(o.Scheme, proof, pw); err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, fmt.Errorf("claim: sapling self-verify failed (inconsistent witness): %w", err)
		}

		proofBytes, err := marshalProof(proof)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, err
		}

		airdropNf := bigIntToNullifier(d.AirdropNullifier)
		rec := types.ProofRecord{
			Pool:             "sapling",
			ZKProof:          proofBytes,
			RandomizedKey:    d.RandomizedKey.Bytes(),
			ValueCommitment:  d.ValueCommitment.Bytes(),
			AirdropNullifier: types.HexNullifier(airdropNf),
			Scheme:           types.ValueCommitmentScheme(o.Scheme),
		}
		if o.Scheme == sapling.ValueCommitmentSHA256 {
			rec.ValueCommitmentHash = d.ValueCommitment.Bytes()
		}
		sec := types.SecretRecord{
			Pool:             "sapling",
			AirdropNullifier: types.HexNullifier(airdropNf),
			Randomizer:       randomizer.Bytes(),
			ValueBlinder:     valueBlinder.Bytes(),
		}
		return rec, sec, nil

	case nullifier.Orchard:
		o := &orchard.Opening{
			SpendingKey:          found.SpendingKey,
			CommitmentRandomness: found.CommitmentRandomness,
			Value:                found.Value,
			ValueBlinder:         valueBlinder,
			Randomizer:           randomizer,
			NotePosition:         found.NotePosition,
			NoteAuthPath:         found.NoteAuthPath,
			NoteAuthPathBits:     found.NoteAuthPathBits,
			NMLeftNullifier:      leftBig,
			NMRightNullifier:     rightBig,
			NMAuthPath:           nmPath,
			NMPositionBits:       nmBits,
			TargetID:             targetID,
			Scheme:               b.orchardSchemeFor(),
		}
		d := orchard.Derive(o)
		assignment := orchard.Assignment(o, d)

		proof, err := b.OrchardManager.Prove(b.orchardSizeFor(), assignment)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, fmt.Errorf("claim: orchard prove: %w", err)
		}
		pw, err := b.OrchardManager.PublicWitness(assignment)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, err
		}
		if err := b.OrchardManager.Verify(b.orchardSizeFor(), proof, pw); err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, fmt.Errorf("claim: orchard self-verify failed (inconsistent witness): %w", err)
		}

		proofBytes, err := marshalProof(proof)
		if err != nil {
			return types.ProofRecord{}, types.SecretRecord{}, err
		}

		airdropNf := bigIntToNullifier(d.AirdropNullifier)
		rec := types.ProofRecord{
			Pool:             "orchard",
			ZKProof:          proofBytes,
			RandomizedKey:    d.RandomizedKey.Bytes(),
			ValueCommitment:  d.ValueCommitment.Bytes(),
			AirdropNullifier: types.HexNullifier(airdropNf),
			Scheme:           types.ValueCommitmentScheme(o.Scheme),
		}
		if o.Scheme == orchard.ValueCommitmentSHA256 {
			rec.ValueCommitmentHash = d.ValueCommitment.Bytes()
		}
		sec := types.SecretRecord{
			Pool:             "orchard",
			AirdropNullifier: types.HexNullifier(airdropNf),
			Randomizer:       randomizer.Bytes(),
			ValueBlinder:     valueBlinder.Bytes(),
		}
		return rec, sec, nil
	}

	return types.ProofRecord{}, types.SecretRecord{}, fmt.Errorf("claim: unknown pool %v", pool)
}

// saplingSchemeFor/orchardSchemeFor/orchardSizeFor read the configured
// scheme from the Builder's last Config; set via Build before buildPool
// runs, so these are safe to call from the pool goroutines.
func (b *Builder) saplingSchemeFor() sapling.ValueCommitmentScheme { return b.cfgSaplingScheme }
func (b *Builder) orchardSchemeFor() orchard.ValueCommitmentScheme { return orchardSchemeForSize(b.cfgOrchardSize) }
func (b *Builder) orchardSizeFor() orchard.ParameterSize           { return b.cfgOrchardSize }

func orchardSchemeForSize(size orchard.ParameterSize) orchard.ValueCommitmentScheme {
	if size == orchard.ParameterSizeSHA256 {
		return orchard.ValueCommitmentSHA256
	}
	return orchard.ValueCommitmentNative
}

func checkRootMatches(pool nullifier.Pool, root gaptree.Node, cfg *types.AirdropConfiguration) error {
	if cfg == nil {
		return nil
	}
	var want *string
	if pool == nullifier.Sapling {
		want = cfg.SaplingGapTreeRoot
	} else {
		want = cfg.OrchardGapTreeRoot
	}
	if want == nil {
		return fmt.Errorf("claim: %s not present in airdrop configuration", poolFileName(pool))
	}
	got := fmt.Sprintf("%x", root[:])
	if got != *want {
		return fmt.Errorf("claim: %s gap-tree root mismatch: computed %s, published %s", poolFileName(pool), got, *want)
	}
	return nil
}

func poolFileName(pool nullifier.Pool) string {
	if pool == nullifier.Sapling {
		return "sapling"
	}
	return "orchard"
}

func poolScheme(pool nullifier.Pool) gaptree.HashScheme {
	if pool == nullifier.Sapling {
		return sapling.Scheme{}
	}
	return orchard.Scheme{}
}

// sortProofsByAirdropNullifier gives the output list a deterministic order.
// The airdrop nullifier is an opaque field element, not a pool nullifier,
// so plain byte-lexicographic order is used rather than either pool's
// chain-nullifier comparator.
func sortProofsByAirdropNullifier(proofs []types.ProofRecord) {
	sort.Slice(proofs, func(i, j int) bool {
		a := nullifier.Nullifier(proofs[i].AirdropNullifier)
		b := nullifier.Nullifier(proofs[j].AirdropNullifier)
		return bytes.Compare(a[:], b[:]) < 0
	})
}

func bigIntToNullifier(v *big.Int) nullifier.Nullifier {
	b := make([]byte, nullifier.Size)
	v.FillBytes(b)
	n, _ := nullifier.New(b)
	return n
}

func randomFieldElement() (*big.Int, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	return v.Mod(v, bls12381fr.Modulus()), nil
}

// proofWriter is the subset of groth16.Proof's interface marshalProof
// needs; both sapling.Manager.Prove and orchard.Manager.Prove return a
// groth16.Proof, which satisfies it.
type proofWriter interface {
	WriteTo(w io.Writer) (int64, error)
}

func marshalProof(proof proofWriter) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("claim: serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

func writeProofsFile(path string, out *types.ClaimProofsOutput) error {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeSecretsFile(path string, out *types.ClaimSecretsOutput) error {
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
