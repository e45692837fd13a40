package reachability_test

import (
	"testing"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/reachability"
	"github.com/tos-network/tos-core/storage/memdb"
)

func hashOf(b byte) primitives.Hash {
	var h primitives.Hash
	h[0] = b
	return h
}

func TestBasicAncestry(t *testing.T) {
	kv := memdb.New()
	defer kv.Close()
	m := reachability.NewManager(kv)

	genesis := hashOf(1)
	a := hashOf(2)
	b := hashOf(3)
	c := hashOf(4)

	if err := m.InitGenesis(genesis); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBlock(a, genesis); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBlock(b, a); err != nil {
		t.Fatal(err)
	}
	if err := m.AddBlock(c, genesis); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		a, b primitives.Hash
		want bool
	}{
		{genesis, a, true},
		{genesis, b, true},
		{genesis, c, true},
		{a, b, true},
		{a, c, false},
		{c, a, false},
		{b, a, false},
		{a, a, true},
	}
	for _, tc := range cases {
		got, err := m.IsDAGAncestorOf(tc.a, tc.b)
		if err != nil {
			t.Fatalf("IsDAGAncestorOf(%x, %x): %v", tc.a[:1], tc.b[:1], err)
		}
		if got != tc.want {
			t.Fatalf("IsDAGAncestorOf(%x, %x) = %v, want %v", tc.a[:1], tc.b[:1], got, tc.want)
		}
	}
}

func TestUnknownBlockIsDataUnavailable(t *testing.T) {
	kv := memdb.New()
	defer kv.Close()
	m := reachability.NewManager(kv)

	genesis := hashOf(1)
	if err := m.InitGenesis(genesis); err != nil {
		t.Fatal(err)
	}

	unknown := hashOf(99)
	_, err := m.IsDAGAncestorOf(genesis, unknown)
	if err != reachability.ErrDataUnavailable {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestFallbackByBlueScore(t *testing.T) {
	if !reachability.FallbackIsAncestorByBlueScore(5, 10) {
		t.Fatal("expected lower blue score to be a plausible ancestor")
	}
	if reachability.FallbackIsAncestorByBlueScore(10, 5) {
		t.Fatal("expected higher blue score to not be a plausible ancestor")
	}
	if reachability.FallbackIsAncestorByBlueScore(5, 5) {
		t.Fatal("equal blue scores should not be treated as strict ancestry")
	}
}

func TestReindexUnderExhaustion(t *testing.T) {
	kv := memdb.New()
	defer kv.Close()
	m := reachability.NewManager(kv)

	genesis := hashOf(0)
	if err := m.InitGenesis(genesis); err != nil {
		t.Fatal(err)
	}

	// Add many children directly under genesis to force repeated interval
	// halving and eventually a reindex/reallocation pass.
	const n = 200
	hashes := make([]primitives.Hash, 0, n)
	for i := 0; i < n; i++ {
		var h primitives.Hash
		h[0] = byte(i + 1)
		h[1] = byte((i + 1) >> 8)
		if err := m.AddBlock(h, genesis); err != nil {
			t.Fatalf("AddBlock #%d: %v", i, err)
		}
		hashes = append(hashes, h)
	}

	// Every child must still be a descendant of genesis, and siblings must
	// not be mistaken for one another's ancestor, even after reindexing.
	for i, h := range hashes {
		ok, err := m.IsDAGAncestorOf(genesis, h)
		if err != nil {
			t.Fatalf("child %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("child %d: expected genesis to be an ancestor after reindex", i)
		}
	}
	ok, err := m.IsDAGAncestorOf(hashes[0], hashes[n-1])
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("sibling should not be reported as an ancestor of another sibling")
	}
}
