package nullifier

import "testing"

func nf(b byte) Nullifier {
	var n Nullifier
	n[0] = b
	return n
}

func TestSanitizeSortsAndDedups(t *testing.T) {
	in := []Nullifier{nf(3), nf(2), nf(1), nf(2), nf(3), nf(1)}
	out, err := Sanitize(Sapling, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Nullifier{nf(1), nf(2), nf(3)}
	if len(out) != len(want) {
		t.Fatalf("got %d nullifiers, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("index %d: got %x want %x", i, out[i], want[i])
		}
	}
}

func TestStringReversedHex(t *testing.T) {
	var n Nullifier
	n[0] = 0xab
	n[31] = 0xcd
	got := n.String()
	want := "cd" + repeat("00", 30) + "ab"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestCmpSaplingIsByteLexicographic(t *testing.T) {
	a := Nullifier{0x01}
	b := Nullifier{0x02}
	if Cmp(Sapling, a, b) >= 0 {
		t.Fatalf("expected a < b")
	}
}

func TestCmpOrchardComparesFromMostSignificantByte(t *testing.T) {
	a := Nullifier{}
	b := Nullifier{}
	a[31] = 0x01
	b[31] = 0x02
	a[0] = 0xff // least-significant byte does not affect ordering here
	if Cmp(Orchard, a, b) >= 0 {
		t.Fatalf("expected a < b when comparing from byte 31")
	}
}

func TestMinMaxBoundEveryGap(t *testing.T) {
	if Cmp(Sapling, Min, Max) >= 0 {
		t.Fatalf("expected Min < Max")
	}
}

func TestSanitizeRejectsNonCanonicalOrchard(t *testing.T) {
	_, err := Sanitize(Orchard, []Nullifier{Max})
	if err != ErrNonCanonical {
		t.Fatalf("expected ErrNonCanonical, got %v", err)
	}
}
