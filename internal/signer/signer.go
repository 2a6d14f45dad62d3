// Package signer binds a claim's proof to a user-chosen message (the
// recipient address on the target chain) via a digest and a re-randomized
// spend-authorization signature, producing the submission a verifier
// accepts or rejects.
package signer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381"
	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/crypto/blake2s"

	"github.com/eigerco/zair/internal/nullifier"
	"github.com/eigerco/zair/pkg/common"
	"github.com/eigerco/zair/pkg/types"
)

// digestPersonalization tags the digest hash with a fixed 8-byte
// personalization string, distinct from the circuits' own hash domains.
var digestPersonalization = []byte("ZairSigD")

// ErrDuplicateSecret is returned when the secret list contains more than
// one entry for the same (pool, airdrop_nullifier) pair.
var ErrDuplicateSecret = errors.New("signer: duplicate secret entry")

// ErrDuplicateAirdropNullifier is returned when two proofs share an
// airdrop nullifier; submitting both would be a double-claim attempt.
var ErrDuplicateAirdropNullifier = errors.New("signer: duplicate airdrop nullifier")

// ErrCountMismatch is returned when a proof has no matching entry in the
// secret list. Secret entries without a matching proof are ignored.
var ErrCountMismatch = errors.New("signer: proof/secret count mismatch")

// AccountContext carries the ZIP-32 seed and account index handed to Sign.
// Sign derives no key from them: each claim's signature proves knowledge
// of that claim's randomizer from the secrets file instead.
type AccountContext struct {
	Seed         []byte
	AccountIndex uint32
}

// MessageAssignment pairs a claim's airdrop nullifier with the message
// bytes (the target-chain recipient) the claim is being bound to.
type MessageAssignment struct {
	Pool             string
	AirdropNullifier types.HexNullifier
	Message          []byte
}

// Config configures one signing run.
type Config struct {
	Account         AccountContext
	SaplingTargetID string
	OrchardTargetID string
	Messages        []MessageAssignment
}

// Sign validates proofs against secrets and signs every claim, returning
// the submission the verifier consumes. Duplicate secrets or duplicate
// airdrop nullifiers are fatal per spec.md §4.7.
func Sign(network types.Network, proofs *types.ClaimProofsOutput, secrets *types.ClaimSecretsOutput, cfg Config) (*types.Submission, error) {
	secretsByKey, err := indexSecrets(secrets)
	if err != nil {
		return nil, err
	}

	messagesByKey := make(map[claimKey][]byte, len(cfg.Messages))
	for _, m := range cfg.Messages {
		messagesByKey[claimKey{m.Pool, m.AirdropNullifier}] = m.Message
	}

	seen := make(map[claimKey]bool)

	var claims []types.SignedClaim
	for _, rec := range proofs.Sapling {
		claim, err := signOne(cfg, "sapling", cfg.SaplingTargetID, rec, secretsByKey, messagesByKey, seen)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	for _, rec := range proofs.Orchard {
		claim, err := signOne(cfg, "orchard", cfg.OrchardTargetID, rec, secretsByKey, messagesByKey, seen)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return &types.Submission{Network: network, Claims: claims}, nil
}

type claimKey struct {
	pool             string
	airdropNullifier types.HexNullifier
}

func indexSecrets(secrets *types.ClaimSecretsOutput) (map[claimKey]types.SecretRecord, error) {
	out := make(map[claimKey]types.SecretRecord)
	add := func(s types.SecretRecord) error {
		k := claimKey{s.Pool, s.AirdropNullifier}
		if _, exists := out[k]; exists {
			return fmt.Errorf("%w: pool=%s nullifier=%s", ErrDuplicateSecret, s.Pool, nullifier.Nullifier(s.AirdropNullifier))
		}
		out[k] = s
		return nil
	}
	for _, s := range secrets.Sapling {
		if err := add(s); err != nil {
			return nil, err
		}
	}
	for _, s := range secrets.Orchard {
		if err := add(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func signOne(cfg Config, pool, targetID string, rec types.ProofRecord, secretsByKey map[claimKey]types.SecretRecord, messagesByKey map[claimKey][]byte, seen map[claimKey]bool) (types.SignedClaim, error) {
	key := claimKey{pool, rec.AirdropNullifier}

	if seen[key] {
		return types.SignedClaim{}, fmt.Errorf("%w: pool=%s nullifier=%s", ErrDuplicateAirdropNullifier, pool, nullifier.Nullifier(rec.AirdropNullifier))
	}
	seen[key] = true

	secret, ok := secretsByKey[key]
	if !ok {
		return types.SignedClaim{}, fmt.Errorf("%w: no secret for pool=%s nullifier=%s", ErrCountMismatch, pool, nullifier.Nullifier(rec.AirdropNullifier))
	}

	message, ok := messagesByKey[key]
	if !ok {
		return types.SignedClaim{}, fmt.Errorf("signer: no message assignment for pool=%s nullifier=%s", pool, nullifier.Nullifier(rec.AirdropNullifier))
	}

	proofHash := HashProofRecord(rec)
	messageHash := hashMessage(message)
	digest := Digest(pool, targetID, proofHash, messageHash)

	sig, commitment, err := reRandomizedSign(digest, secret.Randomizer, rec.RandomizedKey)
	if err != nil {
		return types.SignedClaim{}, fmt.Errorf("signer: sign pool=%s nullifier=%s: %w", pool, nullifier.Nullifier(rec.AirdropNullifier), err)
	}

	return types.SignedClaim{
		Pool:                 pool,
		ZKProof:              rec.ZKProof,
		RandomizedKey:        rec.RandomizedKey,
		ValueCommitment:      rec.ValueCommitment,
		ValueCommitmentHash:  rec.ValueCommitmentHash,
		AirdropNullifier:     rec.AirdropNullifier,
		ProofHash:            proofHash,
		MessageHash:          messageHash,
		RandomizerCommitment: commitment,
		SpendAuthSig:         sig,
	}, nil
}

// HashProofRecord hashes the canonical serialization of a proof record's
// public fields: zkproof || rk || cv || cv_sha256 || airdrop_nullifier.
// Exported so internal/verifier can recompute proof_hash from a signed
// claim's own published fields rather than trusting the claim's stated
// ProofHash, per spec.md §4.8 step 2.
func HashProofRecord(rec types.ProofRecord) []byte {
	h, _ := blake2s.New256(nil)
	h.Write(rec.ZKProof)
	h.Write(rec.RandomizedKey)
	h.Write(rec.ValueCommitment)
	h.Write(rec.ValueCommitmentHash)
	nf := rec.AirdropNullifier.Nullifier()
	h.Write(nf[:])
	return h.Sum(nil)
}

func hashMessage(message []byte) []byte {
	h, _ := blake2s.New256(nil)
	h.Write(message)
	return h.Sum(nil)
}

// Digest computes BLAKE2s personalized with "ZairSigD" over
// pool_tag || target_id || proof_hash || message_hash. Exported so
// internal/verifier can recompute the same digest from a claim's published
// proof_hash/message_hash fields.
func Digest(pool, targetID string, proofHash, messageHash []byte) []byte {
	cfg := &blake2s.Config{Size: 32, Person: digestPersonalization}
	h, _ := blake2s.New256(cfg)
	h.Write([]byte(pool))
	h.Write([]byte(targetID))
	h.Write(proofHash)
	h.Write(messageHash)
	return h.Sum(nil)
}

// g1Generator returns the BLS12-381 G1 generator, the group reRandomizedSign
// and Verify use in place of Jubjub: no Jubjub/RedDSA implementation exists
// anywhere in the example pack, and internal/circuits/sapling/hash.go already stands in Pedersen
// hashing with BLS12-381 G1 scalar multiplication, so the signature scheme
// below reuses the same curve rather than introducing a second one.
func g1Generator() bls12381.G1Affine {
	_, _, g1, _ := bls12381.Generators()
	return g1
}

// randomScalar draws a uniform value in [1, r).
func randomScalar(modulus *big.Int) (*big.Int, error) {
	k, err := rand.Int(rand.Reader, new(big.Int).Sub(modulus, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	return k.Add(k, big.NewInt(1)), nil
}

// schnorrChallenge derives the Fiat-Shamir challenge scalar from the
// nonce commitment, the randomizer commitment, and the claim's digest and
// rk, binding the proof-of-knowledge to this exact claim.
func schnorrChallenge(nonceCommitment, randomizerCommitment, digest, rk []byte) *big.Int {
	h, _ := blake2s.New256(nil)
	h.Write(nonceCommitment)
	h.Write(randomizerCommitment)
	h.Write(digest)
	h.Write(rk)
	c := new(big.Int).SetBytes(h.Sum(nil))
	return c.Mod(c, bls12381fr.Modulus())
}

// reRandomizedSign proves knowledge of the claim's randomizer (alpha) via a
// Schnorr signature over BLS12-381 G1: RedJubjub itself re-randomizes the
// spend-authorizing key and signs under it, but the claim circuit already
// exposes rk as a bare field element rather than a group element (there is
// no Jubjub scalar-multiplication gadget available to compute it as a
// point), so rk alone cannot anchor a verifiable signature the way a real
// spend-authorization key would. alpha, by contrast, never appears outside
// the 0600 secrets file, so the proof-of-knowledge below is bound to a
// fresh public commitment A = [alpha]G returned alongside the signature
// rather than to rk. Returns (signature, commitment).
func reRandomizedSign(digest, alpha, rk []byte) ([]byte, []byte, error) {
	modulus := bls12381fr.Modulus()
	g := g1Generator()

	a := new(big.Int).SetBytes(alpha)
	a.Mod(a, modulus)

	var A bls12381.G1Affine
	A.ScalarMultiplication(&g, a)
	commitment := A.Bytes()

	k, err := randomScalar(modulus)
	if err != nil {
		return nil, nil, fmt.Errorf("signer: draw nonce: %w", err)
	}
	var R bls12381.G1Affine
	R.ScalarMultiplication(&g, k)
	nonceCommitment := R.Bytes()

	c := schnorrChallenge(nonceCommitment[:], commitment[:], digest, rk)

	s := new(big.Int).Mul(c, a)
	s.Add(s, k)
	s.Mod(s, modulus)

	sBytes := common.BigIntToBytes(s, 32)

	sig := make([]byte, 0, len(nonceCommitment)+len(sBytes))
	sig = append(sig, nonceCommitment[:]...)
	sig = append(sig, sBytes...)
	return sig, commitment[:], nil
}

// Verify checks the Schnorr proof of knowledge of alpha encoded in sig
// against the published randomizer commitment, using only public values.
// Used directly by internal/verifier's signature check.
func Verify(digest, sig, commitment, rk []byte) bool {
	const pointSize = bls12381.SizeOfG1AffineCompressed
	if len(sig) != pointSize+32 {
		return false
	}

	var A bls12381.G1Affine
	if _, err := A.SetBytes(commitment); err != nil {
		return false
	}

	var R bls12381.G1Affine
	if _, err := R.SetBytes(sig[:pointSize]); err != nil {
		return false
	}
	s := new(big.Int).SetBytes(sig[pointSize:])
	s.Mod(s, bls12381fr.Modulus())

	c := schnorrChallenge(sig[:pointSize], commitment, digest, rk)

	g := g1Generator()
	var lhs bls12381.G1Affine
	lhs.ScalarMultiplication(&g, s)

	var cA bls12381.G1Affine
	cA.ScalarMultiplication(&A, c)
	var rhs bls12381.G1Affine
	rhs.Add(&R, &cA)

	return lhs.Equal(&rhs)
}
