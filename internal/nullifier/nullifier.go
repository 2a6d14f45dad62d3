// Package nullifier implements the canonical nullifier value model shared
// by the Sapling and Orchard claim pipelines: fixed-size encoding, the
// per-pool total order gap construction relies on, and sanitization of a
// chain-derived or user-derived nullifier set.
package nullifier

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math/big"
	"sort"
)

// Size is the byte length of a nullifier in both shielded pools.
const Size = 32

// Pool identifies which shielded pool a nullifier or claim belongs to.
type Pool uint8

const (
	// Sapling nullifiers order byte-lexicographically.
	Sapling Pool = iota
	// Orchard nullifiers order as little-endian canonical Pallas base-field elements.
	Orchard
)

// String renders the pool name for logging and file-format tags.
func (p Pool) String() string {
	switch p {
	case Sapling:
		return "sapling"
	case Orchard:
		return "orchard"
	default:
		return "unknown"
	}
}

// ErrNonCanonical is returned when an Orchard nullifier is not the
// canonical little-endian encoding of a Pallas base-field element.
var ErrNonCanonical = errors.New("nullifier: value is not a canonical field encoding")

// ErrWrongLength is returned by decoders given the wrong byte length.
var ErrWrongLength = errors.New("nullifier: expected 32 bytes")

// Nullifier is a 32-byte value identifying a spent note. Its comparison
// order depends on which pool it belongs to; callers must not compare
// nullifiers from different pools.
type Nullifier [Size]byte

// Min and Max are sentinels bounding every gap in either pool's ordering.
var (
	Min = Nullifier{}
	Max = func() Nullifier {
		var n Nullifier
		for i := range n {
			n[i] = 0xff
		}
		return n
	}()
)

// New wraps a byte slice of the correct length into a Nullifier.
func New(b []byte) (Nullifier, error) {
	var n Nullifier
	if len(b) != Size {
		return n, ErrWrongLength
	}
	copy(n[:], b)
	return n, nil
}

// Bytes returns the raw 32-byte encoding.
func (n Nullifier) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, n[:])
	return out
}

// String renders the nullifier as reversed hex, matching the Zcash wallet
// convention of displaying nullifiers least-significant-byte first.
func (n Nullifier) String() string {
	reversed := make([]byte, Size)
	for i := range n {
		reversed[i] = n[Size-1-i]
	}
	return hex.EncodeToString(reversed)
}

// Cmp orders two nullifiers of the given pool. Sapling order is plain byte
// lexicographic order; Orchard order compares the Pallas-canonical
// little-endian encoding starting from the most significant byte (index
// 31) down to the least significant (index 0).
func Cmp(pool Pool, a, b Nullifier) int {
	if pool == Sapling {
		return bytes.Compare(a[:], b[:])
	}
	for i := Size - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// IsCanonicalOrchard reports whether b is the canonical little-endian
// encoding of an element of the Pallas base field. Values at or above the
// field modulus are rejected rather than silently reduced, since they
// could never have been produced by a genuine Orchard nullifier.
func IsCanonicalOrchard(n Nullifier) bool {
	v := leToBigInt(n[:])
	return v.Cmp(pallasModulus) < 0
}

// pallasModulus is p, the order of the Pallas base field.
var pallasModulus, _ = new(big.Int).SetString("40000000000000000000000000000000224698fc094cf91b992d30ed00000001", 16)

func leToBigInt(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}

// Sanitize sorts and deduplicates a set of nullifiers for the given pool,
// and for Orchard additionally rejects any non-canonical field encoding.
// The result satisfies the precondition every gap-tree construction
// function relies on: strictly increasing, pool-ordered, no duplicates.
func Sanitize(pool Pool, in []Nullifier) ([]Nullifier, error) {
	out := make([]Nullifier, len(in))
	copy(out, in)

	if pool == Orchard {
		for _, n := range out {
			if !IsCanonicalOrchard(n) {
				return nil, ErrNonCanonical
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return Cmp(pool, out[i], out[j]) < 0
	})

	out = dedup(pool, out)
	return out, nil
}

func dedup(pool Pool, sorted []Nullifier) []Nullifier {
	if len(sorted) == 0 {
		return sorted
	}
	w := 1
	for r := 1; r < len(sorted); r++ {
		if Cmp(pool, sorted[r], sorted[w-1]) != 0 {
			sorted[w] = sorted[r]
			w++
		}
	}
	return sorted[:w]
}

// IsSorted reports whether nullifiers is already in pool order, letting
// callers skip a redundant sort the way the reference sanitizer does.
func IsSorted(pool Pool, nullifiers []Nullifier) bool {
	for i := 1; i < len(nullifiers); i++ {
		if Cmp(pool, nullifiers[i-1], nullifiers[i]) > 0 {
			return false
		}
	}
	return true
}
