package ghostdag_test

import (
	"math/big"
	"testing"

	"github.com/tos-network/tos-core/ghostdag"
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/reachability"
	"github.com/tos-network/tos-core/storage/memdb"
)

func hashOf(b byte) primitives.Hash {
	var h primitives.Hash
	h[0] = b
	return h
}

// fakeBlocks is a BlockSource backed by plain maps, set up by each test.
type fakeBlocks struct {
	parents    map[primitives.Hash][]primitives.Hash
	timestamps map[primitives.Hash]int64
	difficulty map[primitives.Hash]primitives.Difficulty
}

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{
		parents:    map[primitives.Hash][]primitives.Hash{},
		timestamps: map[primitives.Hash]int64{},
		difficulty: map[primitives.Hash]primitives.Difficulty{},
	}
}

func (f *fakeBlocks) Parents(hash primitives.Hash) ([]primitives.Hash, error) {
	return f.parents[hash], nil
}

func (f *fakeBlocks) Timestamp(hash primitives.Hash) (int64, error) {
	return f.timestamps[hash], nil
}

func (f *fakeBlocks) Difficulty(hash primitives.Hash) (primitives.Difficulty, error) {
	return f.difficulty[hash], nil
}

// fakeStore is a DataStore backed by a plain map.
type fakeStore struct {
	data map[primitives.Hash]*ghostdag.GhostdagData
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[primitives.Hash]*ghostdag.GhostdagData{}}
}

func (s *fakeStore) Get(hash primitives.Hash) (*ghostdag.GhostdagData, error) {
	d, ok := s.data[hash]
	if !ok {
		return nil, ghostdag.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) Put(hash primitives.Hash, data *ghostdag.GhostdagData) error {
	s.data[hash] = data
	return nil
}

func contains(hashes []primitives.Hash, target primitives.Hash) bool {
	for _, h := range hashes {
		if h == target {
			return true
		}
	}
	return false
}

// TestBasicMergesetAndColoring builds:
//
//	G -> A1 -> A
//	G -> B
//	G -> C
//
// then merges D on parents [A, B, C]. A's longer chain gives it strictly
// greater blue_work than B and C, so A is selected parent, and B/C (mutual
// anticone, neither an ancestor of the other) land in the mergeset as
// blues, matching spec's basic GHOSTDAG worked example.
func TestBasicMergesetAndColoring(t *testing.T) {
	const k = uint32(3)
	kv := memdb.New()
	defer kv.Close()
	reach := reachability.NewManager(kv)
	blocks := newFakeBlocks()
	store := newFakeStore()
	mgr := ghostdag.NewManager(k, 10, 5, reach, blocks, store)

	g := hashOf(1)
	a1 := hashOf(2)
	a := hashOf(3)
	b := hashOf(4)
	c := hashOf(5)

	diff := primitives.DifficultyFromUint64(1000)
	for _, h := range []primitives.Hash{g, a1, a, b, c} {
		blocks.difficulty[h] = diff
	}

	mustAdd := func(hash primitives.Hash, parents ...primitives.Hash) {
		t.Helper()
		blocks.parents[hash] = parents
		if len(parents) == 0 {
			if err := mgr.ComputeGenesis(hash); err != nil {
				t.Fatalf("ComputeGenesis(%x): %v", hash[:1], err)
			}
			if err := reach.InitGenesis(hash); err != nil {
				t.Fatalf("InitGenesis: %v", err)
			}
			return
		}
		if _, err := mgr.ComputeBlock(hash, parents); err != nil {
			t.Fatalf("ComputeBlock(%x): %v", hash[:1], err)
		}
		sp, err := store.Get(hash)
		if err != nil {
			t.Fatal(err)
		}
		if err := reach.AddBlock(hash, sp.SelectedParent); err != nil {
			t.Fatalf("reachability.AddBlock(%x): %v", hash[:1], err)
		}
	}

	mustAdd(g)
	mustAdd(a1, g)
	mustAdd(a, a1)
	mustAdd(b, g)
	mustAdd(c, g)

	dData, err := mgr.ComputeBlock(hashOf(6), []primitives.Hash{a, b, c})
	if err != nil {
		t.Fatalf("ComputeBlock(D): %v", err)
	}

	if dData.SelectedParent != a {
		t.Fatalf("selected parent = %x, want A", dData.SelectedParent[:1])
	}
	if !contains(dData.MergesetBlues, a) || !contains(dData.MergesetBlues, b) || !contains(dData.MergesetBlues, c) {
		t.Fatalf("mergeset_blues = %v, want {A, B, C}", dData.MergesetBlues)
	}
	if len(dData.MergesetReds) != 0 {
		t.Fatalf("mergeset_reds = %v, want empty", dData.MergesetReds)
	}
	if dData.MergesetBlues[0] != a {
		t.Fatalf("selected parent must be the first element of mergeset_blues")
	}
	for blue, size := range dData.BluesAnticoneSizes {
		if size >= k {
			t.Fatalf("blue %x has anticone size %d >= K(%d)", blue[:1], size, k)
		}
	}

	aData, err := store.Get(a)
	if err != nil {
		t.Fatal(err)
	}
	a1Data, err := store.Get(a1)
	if err != nil {
		t.Fatal(err)
	}
	gData, err := store.Get(g)
	if err != nil {
		t.Fatal(err)
	}
	bData, err := store.Get(b)
	if err != nil {
		t.Fatal(err)
	}
	if aData.BlueScore <= a1Data.BlueScore || a1Data.BlueScore <= gData.BlueScore {
		t.Fatalf("blue_score must strictly increase along the selected-parent chain: G=%d A1=%d A=%d",
			gData.BlueScore, a1Data.BlueScore, aData.BlueScore)
	}
	if aData.BlueWork.Cmp(bData.BlueWork) <= 0 {
		t.Fatalf("blue_work(A) must exceed blue_work(B): A=%v B=%v", aData.BlueWork.Big(), bData.BlueWork.Big())
	}
}

// TestManyMutualAnticoneParentsRespectKClusterBound merges many children of
// genesis that are all mutually anticone. With a small K, not all of them
// can be blue: mergeset_reds must be non-empty and every blue's anticone
// size must stay within K.
func TestManyMutualAnticoneParentsRespectKClusterBound(t *testing.T) {
	const k = uint32(2)
	kv := memdb.New()
	defer kv.Close()
	reach := reachability.NewManager(kv)
	blocks := newFakeBlocks()
	store := newFakeStore()
	mgr := ghostdag.NewManager(k, 10, 5, reach, blocks, store)

	g := hashOf(1)
	blocks.difficulty[g] = primitives.DifficultyFromUint64(500)
	blocks.parents[g] = nil
	if err := mgr.ComputeGenesis(g); err != nil {
		t.Fatal(err)
	}
	if err := reach.InitGenesis(g); err != nil {
		t.Fatal(err)
	}

	const n = 8
	children := make([]primitives.Hash, 0, n)
	for i := 0; i < n; i++ {
		h := hashOf(byte(10 + i))
		blocks.parents[h] = []primitives.Hash{g}
		blocks.difficulty[h] = primitives.DifficultyFromUint64(500)
		if _, err := mgr.ComputeBlock(h, []primitives.Hash{g}); err != nil {
			t.Fatalf("ComputeBlock(child %d): %v", i, err)
		}
		if err := reach.AddBlock(h, g); err != nil {
			t.Fatal(err)
		}
		children = append(children, h)
	}

	d := hashOf(200)
	data, err := mgr.ComputeBlock(d, children)
	if err != nil {
		t.Fatalf("ComputeBlock(D): %v", err)
	}

	if len(data.MergesetReds) == 0 {
		t.Fatal("expected some children to be classified red once K-cluster bound is exceeded")
	}
	if uint32(len(data.MergesetBlues)) > k+1 {
		t.Fatalf("mergeset_blues has %d entries, want <= K+1 = %d", len(data.MergesetBlues), k+1)
	}
	seen := map[primitives.Hash]bool{}
	for _, h := range data.MergesetBlues {
		if seen[h] {
			t.Fatalf("duplicate entry %x in mergeset_blues", h[:1])
		}
		seen[h] = true
		if data.BluesAnticoneSizes[h] >= k {
			t.Fatalf("blue %x has anticone size %d >= K(%d)", h[:1], data.BluesAnticoneSizes[h], k)
		}
	}
	for _, r := range data.MergesetReds {
		if seen[r] {
			t.Fatalf("block %x appears in both mergeset_blues and mergeset_reds", r[:1])
		}
	}
}

func TestAddBlueScoreOverflow(t *testing.T) {
	// addBlueScore is unexported; exercise the overflow path indirectly
	// through ComputeBlock by pre-seeding a parent record whose blue_score
	// sits at the uint64 ceiling.
	kv := memdb.New()
	defer kv.Close()
	reach := reachability.NewManager(kv)
	blocks := newFakeBlocks()
	store := newFakeStore()
	mgr := ghostdag.NewManager(3, 10, 5, reach, blocks, store)

	g := hashOf(1)
	blocks.parents[g] = nil
	blocks.difficulty[g] = primitives.DifficultyFromUint64(1)
	store.data[g] = &ghostdag.GhostdagData{
		IsGenesis:          true,
		BlueWork:           primitives.ZeroBlueWork(),
		BlueScore:          ^uint64(0),
		BluesAnticoneSizes: map[primitives.Hash]uint32{},
	}
	if err := reach.InitGenesis(g); err != nil {
		t.Fatal(err)
	}

	child := hashOf(2)
	blocks.parents[child] = []primitives.Hash{g}
	blocks.difficulty[child] = primitives.DifficultyFromUint64(1)

	_, err := mgr.ComputeBlock(child, []primitives.Hash{g})
	if err != ghostdag.ErrBlueScoreOverflow {
		t.Fatalf("expected ErrBlueScoreOverflow, got %v", err)
	}
}

func TestCalcWorkMonotoneInDifficulty(t *testing.T) {
	low := primitives.CalcWork(primitives.DifficultyFromUint64(10))
	high := primitives.CalcWork(primitives.DifficultyFromUint64(10000))
	if low.Cmp(high) >= 0 {
		t.Fatalf("higher difficulty should yield more work: low=%v high=%v", low, high)
	}
	zero := primitives.CalcWork(primitives.DifficultyFromUint64(0))
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if zero.Cmp(maxU256) != 0 {
		t.Fatalf("zero difficulty should yield max work, got %v", zero)
	}
}
