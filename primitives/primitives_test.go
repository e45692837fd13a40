package primitives

import (
	"math/big"
	"testing"
)

func TestCalcWorkZeroDifficultyIsMax(t *testing.T) {
	work := CalcWork(DifficultyFromUint64(0))
	if work.Cmp(maxU256) != 0 {
		t.Fatalf("expected zero-difficulty work to equal MAX, got %s", work)
	}
}

func TestCalcWorkMonotonicInDifficulty(t *testing.T) {
	low := CalcWork(DifficultyFromUint64(100))
	high := CalcWork(DifficultyFromUint64(1000))
	if high.Cmp(low) <= 0 {
		t.Fatalf("expected higher difficulty to yield more work: low=%s high=%s", low, high)
	}
}

func TestBlueWorkAddOverflow(t *testing.T) {
	near := BlueWorkFromBig(maxU256)
	if _, err := near.Add(big.NewInt(1)); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestHashOrdering(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	hashes := []Hash{b, a}
	SortHashes(hashes)
	if hashes[0] != a || hashes[1] != b {
		t.Fatal("expected sorted order a, b")
	}
}

func TestDomainHashDeterministic(t *testing.T) {
	h1 := DomainHash("TOS_COMMITTEE", []byte{1, 2, 3})
	h2 := DomainHash("TOS_COMMITTEE", []byte{1, 2, 3})
	if h1 != h2 {
		t.Fatal("expected deterministic domain hash")
	}
	h3 := DomainHash("TOS_KYC_SET", []byte{1, 2, 3})
	if h1 == h3 {
		t.Fatal("expected domain separation to change the hash")
	}
}

func TestPublicKeyZero(t *testing.T) {
	var p PublicKey
	if !p.IsZero() {
		t.Fatal("expected zero-value public key to report IsZero")
	}
}
