package ghostdag

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
)

// ErrNonMonotoneTimestamps is returned when a DAA window's timestamps
// decrease from oldest to newest, per spec's "require monotone timestamps
// (reject otherwise)". Equal adjacent timestamps are allowed since a
// window shorter than daaWindowSize pads by repeating its oldest sample.
var ErrNonMonotoneTimestamps = errors.New("daa window timestamps decrease")

// daaWindow collects the most recent daaWindowSize blue blocks along the
// selected-parent chain rooted at startingHash, oldest first. If the chain
// is shorter than the window, the earliest block reached (genesis) pads
// the remainder. Grounded on the teacher's blueBlockWindow
// (blockdag/blockwindow.go), generalized from an in-memory blockNode walk
// to one driven by DataStore.
func (m *Manager) daaWindow(startingHash primitives.Hash) ([]primitives.Hash, error) {
	window := make([]primitives.Hash, 0, m.daaWindowSize)
	current := startingHash

	for uint64(len(window)) < m.daaWindowSize {
		data, err := m.store.Get(current)
		if err != nil {
			return nil, err
		}
		for i := len(data.MergesetBlues) - 1; i >= 0 && uint64(len(window)) < m.daaWindowSize; i-- {
			window = append(window, data.MergesetBlues[i])
		}
		if data.IsGenesis {
			break
		}
		current = data.SelectedParent
	}

	if uint64(len(window)) < m.daaWindowSize {
		// A genesis-rooted chain with no blue mergeset members yet (the
		// very first block after genesis) would otherwise leave window
		// empty; pad with startingHash itself so callers always see at
		// least one timestamp/difficulty sample.
		pad := startingHash
		if len(window) > 0 {
			pad = window[len(window)-1]
		}
		for uint64(len(window)) < m.daaWindowSize {
			window = append(window, pad)
		}
	}

	// The walk above collects newest-first (closest to startingHash first);
	// reverse to oldest-first so callers can assume chronological order.
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}
	return window, nil
}

// mergesetNonDAA returns the blue mergeset members (excluding the selected
// parent, which is skipped explicitly rather than looked up) that fall outside
// the DAA window rooted at selectedParent.
func (m *Manager) mergesetNonDAA(selectedParent primitives.Hash, blues []primitives.Hash) ([]primitives.Hash, error) {
	window, err := m.daaWindow(selectedParent)
	if err != nil {
		return nil, err
	}
	inWindow := make(map[primitives.Hash]bool, len(window))
	for _, h := range window {
		inWindow[h] = true
	}

	var nonDAA []primitives.Hash
	for _, b := range blues {
		if b == selectedParent {
			continue
		}
		if !inWindow[b] {
			nonDAA = append(nonDAA, b)
		}
	}
	return nonDAA, nil
}

// NextDifficulty computes the retarget difficulty for a block whose
// selected parent is selectedParent, using the DAA window's median-time-
// past split and average work, per spec §4.3's difficulty adjustment rule.
// targetBlockTime is the network's desired seconds-per-block.
func (m *Manager) NextDifficulty(selectedParent primitives.Hash, targetBlockTime int64) (primitives.Difficulty, error) {
	window, err := m.daaWindow(selectedParent)
	if err != nil {
		return primitives.Difficulty{}, err
	}

	timestamps := make([]int64, len(window))
	sumWork := new(big.Int)
	for i, h := range window {
		ts, err := m.blocks.Timestamp(h)
		if err != nil {
			return primitives.Difficulty{}, err
		}
		timestamps[i] = ts
		// Equal timestamps are tolerated: daaWindow pads a short window
		// (near genesis) by repeating its oldest sampled block, which
		// naturally repeats that block's timestamp. Only a decrease is a
		// genuine ordering violation.
		if i > 0 && timestamps[i] < timestamps[i-1] {
			return primitives.Difficulty{}, ErrNonMonotoneTimestamps
		}
		difficulty, err := m.blocks.Difficulty(h)
		if err != nil {
			return primitives.Difficulty{}, err
		}
		sumWork.Add(sumWork, primitives.CalcWork(difficulty))
	}

	half := len(window) / 2
	oldestMedian := medianTimestamp(timestamps[:half])
	newestMedian := medianTimestamp(timestamps[half:])

	var span int64
	if newestMedian > oldestMedian {
		span = newestMedian - oldestMedian
	} // else saturate to zero, handled by the span==0 guard below.

	expectedSpan := targetBlockTime * int64(len(window)-half)
	if span <= 0 {
		span = 1
	}

	averageWork := new(big.Int).Div(sumWork, big.NewInt(int64(len(window))))
	newWork := new(big.Int).Mul(averageWork, big.NewInt(expectedSpan))
	newWork.Div(newWork, big.NewInt(span))
	if newWork.Sign() == 0 {
		newWork.SetInt64(1)
	}

	return workToDifficulty(newWork), nil
}

func medianTimestamp(ts []int64) int64 {
	sorted := append([]int64(nil), ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// workToDifficulty approximately inverts CalcWork. CalcWork(d) is, up to
// its +1 rounding terms, the identity function across the entire
// practically reachable difficulty range (work = MAX/(MAX/d+1)+1 ≈ d
// whenever d is small relative to MAX, which every real difficulty is);
// it only saturates differently as d approaches MAX itself. So the
// closest-fit inverse is identity, not MAX/work — MAX/work would send a
// small, easy retarget result back out as an enormous difficulty.
func workToDifficulty(work *big.Int) primitives.Difficulty {
	if work.Sign() <= 0 {
		return primitives.DifficultyFromUint64(1)
	}
	return primitives.NewDifficulty(work)
}
