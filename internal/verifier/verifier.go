// Package verifier checks a submission against a published
// AirdropConfiguration: the Groth16 proof of every claim, the
// re-randomized spend-authorization signature binding it to a message,
// and global uniqueness of each (pool, airdrop_nullifier) pair.
package verifier

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/sirupsen/logrus"

	"github.com/eigerco/zair/internal/circuits/orchard"
	"github.com/eigerco/zair/internal/circuits/sapling"
	"github.com/eigerco/zair/internal/nullifier"
	"github.com/eigerco/zair/internal/signer"
	"github.com/eigerco/zair/internal/storage"
	"github.com/eigerco/zair/pkg/types"
)

// Failure describes one claim that failed verification. Per spec.md §7 the
// verifier reports every failing claim rather than stopping at the first.
type Failure struct {
	Pool             string
	AirdropNullifier types.HexNullifier
	Reason           string
}

func (f Failure) String() string {
	return fmt.Sprintf("pool=%s nullifier=%s: %s", f.Pool, nullifier.Nullifier(f.AirdropNullifier), f.Reason)
}

// Result is the outcome of checking a whole submission.
type Result struct {
	Accepted []types.HexNullifier
	Failed   []Failure
}

// OK reports whether every claim in the submission was accepted.
func (r Result) OK() bool { return len(r.Failed) == 0 }

// Verifier checks submissions against a single published
// AirdropConfiguration, using the Sapling and Orchard managers' cached
// verifying keys.
type Verifier struct {
	Config         *types.AirdropConfiguration
	SaplingManager *sapling.Manager
	OrchardManager *orchard.Manager
	Store          *storage.Store
	Log            *logrus.Entry
}

// New constructs a Verifier bound to a published AirdropConfiguration.
func New(cfg *types.AirdropConfiguration, saplingMgr *sapling.Manager, orchardMgr *orchard.Manager, store *storage.Store, log *logrus.Entry) *Verifier {
	return &Verifier{
		Config:         cfg,
		SaplingManager: saplingMgr,
		OrchardManager: orchardMgr,
		Store:          store,
		Log:            log,
	}
}

// SetupAll compiles both pools' circuits for every scheme/parameter-size
// combination a submission might use, reusing a key pair the Cache already
// holds in memory and otherwise running trusted setup. Keys are not read
// from the cache directory, so a fresh process sets up new key pairs.
// Callers must invoke this once before Verify.
func (v *Verifier) SetupAll() error {
	if err := v.SaplingManager.Setup(sapling.ValueCommitmentNative); err != nil {
		return err
	}
	if err := v.SaplingManager.Setup(sapling.ValueCommitmentSHA256); err != nil {
		return err
	}
	if err := v.OrchardManager.Setup(orchard.ParameterSizeNative); err != nil {
		return err
	}
	if err := v.OrchardManager.Setup(orchard.ParameterSizeSHA256); err != nil {
		return err
	}
	return nil
}

// Verify checks every claim in sub: the Groth16 proof against the
// published anchors/roots/target_id, the spend-authorization signature
// against the claim's randomizer_commitment with rk bound into its
// challenge, and uniqueness of (pool, airdrop_nullifier) within this
// submission and (if a Store is configured) of the airdrop nullifier
// against every submission the Store has already recorded. It never returns early on a claim failure — every claim is
// checked and reported, per spec.md §7 and §4.8.
func (v *Verifier) Verify(ctx context.Context, sub *types.Submission) (*Result, error) {
	if sub.Network != v.Config.Network {
		return nil, fmt.Errorf("verifier: submission network %q does not match configuration network %q", sub.Network, v.Config.Network)
	}

	result := &Result{}
	seen := make(map[claimKey]bool, len(sub.Claims))

	for _, claim := range sub.Claims {
		key := claimKey{claim.Pool, claim.AirdropNullifier}

		if seen[key] {
			result.Failed = append(result.Failed, Failure{
				Pool: claim.Pool, AirdropNullifier: claim.AirdropNullifier,
				Reason: "duplicate airdrop nullifier within submission",
			})
			continue
		}
		seen[key] = true

		if reason := v.verifyProof(claim); reason != "" {
			result.Failed = append(result.Failed, Failure{Pool: claim.Pool, AirdropNullifier: claim.AirdropNullifier, Reason: reason})
			continue
		}

		if reason := v.verifySignature(claim); reason != "" {
			result.Failed = append(result.Failed, Failure{Pool: claim.Pool, AirdropNullifier: claim.AirdropNullifier, Reason: reason})
			continue
		}

		if v.Store != nil {
			nf := claim.AirdropNullifier.Nullifier()
			if err := v.Store.RecordSubmission(ctx, string(sub.Network), nf[:], claim.SpendAuthSig, claim.MessageHash); err != nil {
				if err == storage.ErrDuplicate {
					result.Failed = append(result.Failed, Failure{
						Pool: claim.Pool, AirdropNullifier: claim.AirdropNullifier,
						Reason: "airdrop nullifier already claimed in a prior submission",
					})
					continue
				}
				return nil, fmt.Errorf("verifier: record submission: %w", err)
			}
		}

		result.Accepted = append(result.Accepted, claim.AirdropNullifier)
	}

	if v.Log != nil {
		v.Log.WithFields(logrus.Fields{
			"accepted": len(result.Accepted),
			"failed":   len(result.Failed),
		}).Info("verifier: submission checked")
	}

	return result, nil
}

type claimKey struct {
	pool             string
	airdropNullifier types.HexNullifier
}

// verifyProof checks claim's Groth16 proof against the published
// AirdropConfiguration, returning a non-empty reason string on failure.
func (v *Verifier) verifyProof(claim types.SignedClaim) string {
	switch claim.Pool {
	case "sapling":
		return v.verifySaplingProof(claim)
	case "orchard":
		return v.verifyOrchardProof(claim)
	default:
		return fmt.Sprintf("unknown pool %q", claim.Pool)
	}
}

func (v *Verifier) verifySaplingProof(claim types.SignedClaim) string {
	if v.Config.SaplingAnchor == nil || v.Config.SaplingGapTreeRoot == nil || v.Config.SaplingTargetID == nil {
		return "sapling not configured in airdrop configuration"
	}

	anchor, err := hexToBigInt(*v.Config.SaplingAnchor)
	if err != nil {
		return fmt.Sprintf("decode sapling anchor: %v", err)
	}
	nmAnchor, err := hexToBigInt(*v.Config.SaplingGapTreeRoot)
	if err != nil {
		return fmt.Sprintf("decode sapling gap-tree root: %v", err)
	}

	rk := new(big.Int).SetBytes(claim.RandomizedKey)
	airdropNf := new(big.Int).SetBytes(claim.AirdropNullifier.Nullifier().Bytes())
	targetID := new(big.Int).SetBytes([]byte(*v.Config.SaplingTargetID))

	scheme := sapling.ValueCommitmentNative
	var cv *big.Int
	if len(claim.ValueCommitmentHash) > 0 {
		scheme = sapling.ValueCommitmentSHA256
		cv = new(big.Int).SetBytes(claim.ValueCommitmentHash)
	} else {
		cv = new(big.Int).SetBytes(claim.ValueCommitment)
	}

	assignment := sapling.PublicAssignment(anchor, nmAnchor, rk, cv, airdropNf, targetID, scheme)

	pw, err := v.SaplingManager.PublicWitness(assignment)
	if err != nil {
		return fmt.Sprintf("build public witness: %v", err)
	}

	proof := groth16.NewProof(ecc.BLS12_381)
	if _, err := proof.ReadFrom(bytes.NewReader(claim.ZKProof)); err != nil {
		return fmt.Sprintf("decode proof: %v", err)
	}

	if err := v.SaplingManager.Verify(scheme, proof, pw); err != nil {
		return fmt.Sprintf("proof did not verify: %v", err)
	}
	return ""
}

func (v *Verifier) verifyOrchardProof(claim types.SignedClaim) string {
	if v.Config.OrchardAnchor == nil || v.Config.OrchardGapTreeRoot == nil || v.Config.OrchardTargetID == nil {
		return "orchard not configured in airdrop configuration"
	}

	anchor, err := hexToBigInt(*v.Config.OrchardAnchor)
	if err != nil {
		return fmt.Sprintf("decode orchard anchor: %v", err)
	}
	nmAnchor, err := hexToBigInt(*v.Config.OrchardGapTreeRoot)
	if err != nil {
		return fmt.Sprintf("decode orchard gap-tree root: %v", err)
	}

	rk := new(big.Int).SetBytes(claim.RandomizedKey)
	airdropNf := new(big.Int).SetBytes(claim.AirdropNullifier.Nullifier().Bytes())
	targetID := new(big.Int).SetBytes([]byte(*v.Config.OrchardTargetID))

	size := orchard.ParameterSizeNative
	scheme := orchard.ValueCommitmentNative
	var cv *big.Int
	if len(claim.ValueCommitmentHash) > 0 {
		size = orchard.ParameterSizeSHA256
		scheme = orchard.ValueCommitmentSHA256
		cv = new(big.Int).SetBytes(claim.ValueCommitmentHash)
	} else {
		cv = new(big.Int).SetBytes(claim.ValueCommitment)
	}

	assignment := orchard.PublicAssignment(anchor, nmAnchor, rk, cv, airdropNf, targetID, scheme)

	pw, err := v.OrchardManager.PublicWitness(assignment)
	if err != nil {
		return fmt.Sprintf("build public witness: %v", err)
	}

	proof := groth16.NewProof(ecc.BLS12_381)
	if _, err := proof.ReadFrom(bytes.NewReader(claim.ZKProof)); err != nil {
		return fmt.Sprintf("decode proof: %v", err)
	}

	if err := v.OrchardManager.Verify(size, proof, pw); err != nil {
		return fmt.Sprintf("proof did not verify: %v", err)
	}
	return ""
}

// verifySignature recomputes proof_hash from the claim's own published
// proof fields, recomputes digest from that and the claim's message_hash,
// and checks spend_auth_sig against the claim's randomizer_commitment, with
// rk bound into the challenge, per spec.md §4.8 step 2. It does
// not re-derive message_hash from raw inputs (the verifier has no access
// to the original message bytes, only its hash).
func (v *Verifier) verifySignature(claim types.SignedClaim) string {
	var targetID *string
	switch claim.Pool {
	case "sapling":
		targetID = v.Config.SaplingTargetID
	case "orchard":
		targetID = v.Config.OrchardTargetID
	default:
		return fmt.Sprintf("unknown pool %q", claim.Pool)
	}
	if targetID == nil {
		return fmt.Sprintf("%s target_id not configured", claim.Pool)
	}

	proofHash := signer.HashProofRecord(types.ProofRecord{
		Pool:                claim.Pool,
		ZKProof:             claim.ZKProof,
		RandomizedKey:       claim.RandomizedKey,
		ValueCommitment:     claim.ValueCommitment,
		ValueCommitmentHash: claim.ValueCommitmentHash,
		AirdropNullifier:    claim.AirdropNullifier,
	})
	if !bytes.Equal(proofHash, claim.ProofHash) {
		return "proof_hash does not match the claim's published proof fields"
	}

	digest := signer.Digest(claim.Pool, *targetID, proofHash, claim.MessageHash)
	if !signer.Verify(digest, claim.SpendAuthSig, claim.RandomizerCommitment, claim.RandomizedKey) {
		return "spend authorization signature did not verify"
	}
	return ""
}

func hexToBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", s)
	}
	return v, nil
}
