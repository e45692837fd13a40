// Package ghostdag implements the L4 consensus engine: selected-parent
// choice, mergeset construction, blue/red coloring under the K-cluster
// bound, and blue_score/blue_work accounting. Grounded on the teacher's
// blockdag/ghostdag.go (selectedParentAnticone, blueAnticoneSize, ghostdag),
// generalized from an in-memory blockNode graph into one driven by the
// BlockSource/DataStore interfaces so it can run against any storage.KV-
// backed implementation.
package ghostdag

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/reachability"
)

// GhostdagData is the per-block output of the coloring algorithm.
type GhostdagData struct {
	BlueScore   uint64
	BlueWork    primitives.BlueWork
	// SelectedParent is the zero hash for genesis.
	SelectedParent primitives.Hash
	IsGenesis      bool
	// MergesetBlues includes SelectedParent as its first element, per the
	// invariant that the selected parent is always itself blue.
	MergesetBlues []primitives.Hash
	MergesetReds  []primitives.Hash
	// BluesAnticoneSizes maps every blue in MergesetBlues to the size of
	// its anticone restricted to this block's own blue set.
	BluesAnticoneSizes map[primitives.Hash]uint32
	// MergesetNonDAA lists the blue mergeset members (excluding the
	// selected parent) that fall outside the DAA window rooted at the
	// selected parent, and so are excluded from retarget statistics.
	MergesetNonDAA []primitives.Hash
}

// BlockSource supplies the raw header facts ghostdag needs about a block:
// its parent set, timestamp, and proof-of-work difficulty.
type BlockSource interface {
	Parents(hash primitives.Hash) ([]primitives.Hash, error)
	Timestamp(hash primitives.Hash) (int64, error)
	Difficulty(hash primitives.Hash) (primitives.Difficulty, error)
}

// DataStore persists and retrieves GhostdagData.
type DataStore interface {
	Get(hash primitives.Hash) (*GhostdagData, error)
	Put(hash primitives.Hash, data *GhostdagData) error
}

// ErrNotFound is returned by a DataStore implementation when a block has no
// recorded GhostdagData.
var ErrNotFound = errors.New("ghostdag data not found")

// ErrParentNotFound is returned when a parent referenced by a new block has
// no GhostdagData recorded (spec: every block in the parent set must
// already be accepted).
var ErrParentNotFound = errors.New("parent not found in ghostdag store")

// ErrNoValidParents is returned when ComputeBlock is called with an empty
// parent set for a non-genesis block.
var ErrNoValidParents = errors.New("block has no valid parents")

// ErrKClusterViolation signals a hard failure during coloring: a
// previously-blue ancestor's anticone size already reached K, which indicates a
// bug in this implementation or a malicious/malformed DAG, not a
// recoverable condition.
var ErrKClusterViolation = errors.New("k-cluster violation during coloring")

// ErrBlueScoreOverflow / ErrBlueWorkOverflow surface checked-arithmetic
// failures rather than silently wrapping.
var (
	ErrBlueScoreOverflow = errors.New("blue score overflow")
	ErrBlueWorkOverflow  = errors.New("blue work overflow")
)

// Manager computes and stores GhostdagData.
type Manager struct {
	k             uint32
	daaWindowSize uint64
	// gap is the conservative margin used by the blue-score fallback
	// ancestry test when reachability data is unavailable for one of the
	// two blocks being compared.
	gap          uint64
	reachability *reachability.Manager
	blocks       BlockSource
	store        DataStore
}

// NewManager constructs a Manager. k is the network's K-cluster bound,
// daaWindowSize is DAA_WINDOW_SIZE, and gap is the conservative blue-score
// margin used by the reachability fallback.
func NewManager(k uint32, daaWindowSize, gap uint64, reach *reachability.Manager, blocks BlockSource, store DataStore) *Manager {
	return &Manager{k: k, daaWindowSize: daaWindowSize, gap: gap, reachability: reach, blocks: blocks, store: store}
}

// ComputeGenesis records the genesis block's GhostdagData: blue_score and
// blue_work start at zero, and it has no selected parent.
func (m *Manager) ComputeGenesis(hash primitives.Hash) error {
	data := &GhostdagData{
		IsGenesis:          true,
		BlueWork:           primitives.ZeroBlueWork(),
		BluesAnticoneSizes: map[primitives.Hash]uint32{},
	}
	return m.store.Put(hash, data)
}

// ComputeBlock runs the full GHOSTDAG pipeline for a new block given its
// parent set, and persists the resulting GhostdagData.
func (m *Manager) ComputeBlock(hash primitives.Hash, parents []primitives.Hash) (*GhostdagData, error) {
	if len(parents) == 0 {
		return nil, ErrNoValidParents
	}

	parentData := make(map[primitives.Hash]*GhostdagData, len(parents))
	for _, p := range parents {
		data, err := m.store.Get(p)
		if err == ErrNotFound {
			return nil, errors.Wrapf(ErrParentNotFound, "%x", p[:])
		}
		if err != nil {
			return nil, err
		}
		parentData[p] = data
	}

	selectedParent := selectParent(parents, parentData)

	mergeset, err := m.selectedParentAnticone(parents, selectedParent)
	if err != nil {
		return nil, err
	}
	if err := m.sortByBlueWork(mergeset); err != nil {
		return nil, err
	}

	blues := []primitives.Hash{selectedParent}
	bluesAnticoneSizes := map[primitives.Hash]uint32{selectedParent: 0}
	var reds []primitives.Hash

	// inProgress lets anticoneSizeWithinContext see blues confirmed earlier
	// in this same coloring pass, before the block itself is persisted.
	inProgress := &GhostdagData{SelectedParent: selectedParent, BluesAnticoneSizes: bluesAnticoneSizes}

	for _, candidate := range mergeset {
		if uint32(len(blues)) >= m.k+1 {
			reds = append(reds, candidate)
			continue
		}

		candidateSizes := map[primitives.Hash]uint32{}
		var candidateAnticoneSize uint32
		possiblyBlue := true

		for _, blue := range blues {
			isAncestor, err := m.isAncestorOf(blue, candidate)
			if err != nil {
				return nil, err
			}
			if isAncestor {
				continue
			}
			size, err := m.anticoneSizeWithinContext(blue, selectedParent, inProgress)
			if err != nil {
				return nil, err
			}
			if size >= m.k {
				return nil, ErrKClusterViolation
			}
			candidateSizes[blue] = size
			candidateAnticoneSize++
			if candidateAnticoneSize >= m.k || size+1 >= m.k {
				possiblyBlue = false
				break
			}
		}

		if possiblyBlue {
			blues = append(blues, candidate)
			bluesAnticoneSizes[candidate] = candidateAnticoneSize
			for blue, size := range candidateSizes {
				bluesAnticoneSizes[blue] = size + 1
			}
		} else {
			reds = append(reds, candidate)
		}
	}

	blueScore, err := addBlueScore(parentData[selectedParent].BlueScore, uint64(len(blues)))
	if err != nil {
		return nil, err
	}

	blueWork := parentData[selectedParent].BlueWork
	for _, b := range blues {
		difficulty, err := m.blocks.Difficulty(b)
		if err != nil {
			return nil, err
		}
		blueWork, err = blueWork.Add(primitives.CalcWork(difficulty))
		if err != nil {
			return nil, ErrBlueWorkOverflow
		}
	}

	nonDAA, err := m.mergesetNonDAA(selectedParent, blues)
	if err != nil {
		return nil, err
	}

	data := &GhostdagData{
		BlueScore:          blueScore,
		BlueWork:           blueWork,
		SelectedParent:     selectedParent,
		MergesetBlues:      blues,
		MergesetReds:       reds,
		BluesAnticoneSizes: bluesAnticoneSizes,
		MergesetNonDAA:     nonDAA,
	}
	if err := m.store.Put(hash, data); err != nil {
		return nil, err
	}
	return data, nil
}

// selectParent picks argmax blue_work, tie-broken lexicographically by
// hash, per spec step 2.
func selectParent(parents []primitives.Hash, data map[primitives.Hash]*GhostdagData) primitives.Hash {
	best := parents[0]
	for _, p := range parents[1:] {
		cmp := data[p].BlueWork.Cmp(data[best].BlueWork)
		if cmp > 0 || (cmp == 0 && p.Less(best)) {
			best = p
		}
	}
	return best
}

// selectedParentAnticone is a BFS over non-selected parents' ancestry,
// collecting every block that is not an ancestor of selectedParent.
// Grounded directly on the teacher's selectedParentAnticone.
func (m *Manager) selectedParentAnticone(parents []primitives.Hash, selectedParent primitives.Hash) ([]primitives.Hash, error) {
	anticoneSet := make(map[primitives.Hash]bool)
	past := make(map[primitives.Hash]bool)
	var queue []primitives.Hash
	var anticone []primitives.Hash

	for _, p := range parents {
		if p == selectedParent {
			continue
		}
		anticoneSet[p] = true
		anticone = append(anticone, p)
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		currentParents, err := m.blocks.Parents(current)
		if err != nil {
			return nil, err
		}
		for _, p := range currentParents {
			if anticoneSet[p] || past[p] {
				continue
			}
			isAncestor, err := m.isAncestorOf(p, selectedParent)
			if err != nil {
				return nil, err
			}
			if isAncestor {
				past[p] = true
				continue
			}
			anticoneSet[p] = true
			anticone = append(anticone, p)
			queue = append(queue, p)
		}
	}
	return anticone, nil
}

// sortByBlueWork orders the mergeset by (blue_work, hash) ascending, per
// spec step 3.
func (m *Manager) sortByBlueWork(mergeset []primitives.Hash) error {
	var sortErr error
	sort.Slice(mergeset, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		di, err := m.store.Get(mergeset[i])
		if err != nil {
			sortErr = err
			return false
		}
		dj, err := m.store.Get(mergeset[j])
		if err != nil {
			sortErr = err
			return false
		}
		cmp := di.BlueWork.Cmp(dj.BlueWork)
		if cmp != 0 {
			return cmp < 0
		}
		return mergeset[i].Less(mergeset[j])
	})
	return sortErr
}

// isAncestorOf wraps reachability's ancestry test, falling back to the
// conservative blue-score-gap heuristic when reachability data is
// unavailable for either block.
func (m *Manager) isAncestorOf(a, b primitives.Hash) (bool, error) {
	ok, err := m.reachability.IsDAGAncestorOf(a, b)
	if err == nil {
		return ok, nil
	}
	if err != reachability.ErrDataUnavailable {
		return false, err
	}
	dataA, errA := m.store.Get(a)
	if errA != nil {
		return false, errA
	}
	dataB, errB := m.store.Get(b)
	if errB != nil {
		return false, errB
	}
	return dataA.BlueScore+m.gap < dataB.BlueScore, nil
}

// anticoneSizeWithinContext returns the anticone size, restricted to the
// new block's own blue set, of block. It first checks the in-progress
// colouring pass (blues already confirmed for the new block), then walks
// the selected-parent chain's already-committed GhostdagData, mirroring
// the teacher's blueAnticoneSize.
func (m *Manager) anticoneSizeWithinContext(block, selectedParent primitives.Hash, inProgress *GhostdagData) (uint32, error) {
	if size, ok := inProgress.BluesAnticoneSizes[block]; ok {
		return size, nil
	}
	for current := selectedParent; ; {
		data, err := m.store.Get(current)
		if err != nil {
			return 0, err
		}
		if size, ok := data.BluesAnticoneSizes[block]; ok {
			return size, nil
		}
		if data.IsGenesis {
			break
		}
		current = data.SelectedParent
	}
	return 0, errors.Errorf("block %x is not in the blue set being extended", block[:])
}

func addBlueScore(base, delta uint64) (uint64, error) {
	sum := base + delta
	if sum < base {
		return 0, ErrBlueScoreOverflow
	}
	return sum, nil
}
