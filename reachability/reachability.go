// Package reachability implements the L3 ancestry index: a tree of closed
// intervals allocated so that one block's interval always contains the
// interval of every block in its future, making "is A an ancestor of B"
// reduce to interval containment rather than a DAG walk. Grounded on the
// teacher's reachabilityTreeNode/reachabilityStore
// (domain/blockdag/reachabilitystore.go, processes/reachabilitymanager/reachability.go),
// generalized from an in-memory pointer tree into one backed directly by
// storage.KV.
package reachability

import (
	"github.com/pkg/errors"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/storage"
)

// ErrDataUnavailable is returned by IsDAGAncestorOf when one of the two
// blocks has no reachability record (e.g. it has not been processed yet).
// ghostdag.Manager does not treat this as a hard error: it falls back to its
// own blue-score comparison with a configured gap margin (it does not call
// FallbackIsAncestorByBlueScore).
var ErrDataUnavailable = errors.New("reachability data unavailable")

// ErrExhausted is returned when the reachability index space cannot be
// grown any further, even by reindexing all the way to the root. In
// practice this only happens if genesis's interval (nearly the full
// uint64 range) is insufficient for the DAG's size, which does not happen
// this side of astronomical block counts.
var ErrExhausted = errors.New("reachability index space exhausted")

// genesisIntervalEnd leaves the top of the uint64 range unused so interval
// arithmetic (End+1) never wraps.
const genesisIntervalEnd = ^uint64(0) - 1

// Manager maintains the reachability tree over storage.KV's
// ColumnReachability.
type Manager struct {
	store *store
}

// NewManager constructs a Manager over kv. kv is typically a
// *storage.Snapshot during block application, or the committed Backend for
// read-only queries.
func NewManager(kv storage.KV) *Manager {
	return &Manager{store: newStore(kv)}
}

// InitGenesis registers the genesis block as the reachability tree's root,
// owning the near-entirety of the uint64 interval space.
func (m *Manager) InitGenesis(hash primitives.Hash) error {
	root := &record{
		Interval:    Interval{Start: 0, End: genesisIntervalEnd},
		ChildCursor: 0,
	}
	m.store.put(hash, root)
	return m.store.flush()
}

// AddBlock registers hash as a tree child of selectedParent, allocating it
// an interval from selectedParent's remaining capacity. selectedParent must
// already be registered (genesis, or a prior AddBlock).
func (m *Manager) AddBlock(hash, selectedParent primitives.Hash) error {
	parent, err := m.store.get(selectedParent)
	if err != nil {
		return errors.Wrapf(err, "selected parent %s has no reachability data", selectedParent)
	}

	available := availableCapacity(parent)
	if available == 0 {
		if err := m.reindex(selectedParent); err != nil {
			return err
		}
		parent, err = m.store.get(selectedParent)
		if err != nil {
			return err
		}
		available = availableCapacity(parent)
		if available == 0 {
			return ErrExhausted
		}
	}

	capacity := available / 2
	if capacity == 0 {
		capacity = 1
	}
	childInterval := Interval{Start: parent.ChildCursor, End: parent.ChildCursor + capacity - 1}

	parent.ChildCursor = childInterval.End + 1
	parent.Children = append(parent.Children, hash)
	m.store.put(selectedParent, parent)

	m.store.put(hash, &record{
		Interval:  childInterval,
		HasParent: true,
		Parent:    selectedParent,
	})
	return m.store.flush()
}

func availableCapacity(r *record) uint64 {
	if r.ChildCursor > r.Interval.End {
		return 0
	}
	return r.Interval.End - r.ChildCursor + 1
}

// IsDAGAncestorOf reports whether a is an ancestor of b (true if a == b),
// per spec's reachability semantics. Returns ErrDataUnavailable if either
// block has not been registered.
func (m *Manager) IsDAGAncestorOf(a, b primitives.Hash) (bool, error) {
	recA, err := m.store.get(a)
	if err == storage.ErrNotFound {
		return false, ErrDataUnavailable
	}
	if err != nil {
		return false, err
	}
	recB, err := m.store.get(b)
	if err == storage.ErrNotFound {
		return false, ErrDataUnavailable
	}
	if err != nil {
		return false, err
	}
	return recA.Interval.Contains(recB.Interval), nil
}

// FallbackIsAncestorByBlueScore is the conservative heuristic used when
// IsDAGAncestorOf returns ErrDataUnavailable: a real ancestor always has a
// strictly lower blue score than a strict descendant, so this is a
// necessary (not sufficient) condition. It is meant to approximate "could
// plausibly be an ancestor" for callers that must make progress without
// reachability data, not to replace IsDAGAncestorOf once that data exists.
func FallbackIsAncestorByBlueScore(blueScoreA, blueScoreB uint64) bool {
	return blueScoreA < blueScoreB
}

// subtreeSize counts hash and every descendant of hash.
func (m *Manager) subtreeSize(hash primitives.Hash) (uint64, error) {
	rec, err := m.store.get(hash)
	if err != nil {
		return 0, err
	}
	total := uint64(1)
	for _, child := range rec.Children {
		childSize, err := m.subtreeSize(child)
		if err != nil {
			return 0, err
		}
		total += childSize
	}
	return total, nil
}

// reindex repacks hash's subtree to reclaim space wasted by the geometric
// allocation scheme. If hash's own interval cannot hold its subtree plus
// slack for future growth, reindex climbs to hash's parent and repacks
// there instead, which in turn gives hash a larger interval to repack
// within. This terminates at the root, whose interval is nearly the full
// uint64 range.
func (m *Manager) reindex(hash primitives.Hash) error {
	rec, err := m.store.get(hash)
	if err != nil {
		return err
	}

	size, err := m.subtreeSize(hash)
	if err != nil {
		return err
	}
	desired := size * 2 // reserve room for future children, not just current ones

	if desired > rec.Interval.Size() {
		if !rec.HasParent {
			return ErrExhausted
		}
		if err := m.reindex(rec.Parent); err != nil {
			return err
		}
		// hash's interval was reassigned (larger) as part of repacking its
		// parent; re-fetch and repack hash's own subtree in the new space.
		rec, err = m.store.get(hash)
		if err != nil {
			return err
		}
	}

	if err := m.reallocateSubtree(hash, rec.Interval); err != nil {
		return err
	}
	return m.store.flush()
}

// reallocateSubtree reassigns interval to hash, then distributes half of
// it among hash's existing children proportional to each child's subtree
// size (reserving the other half, starting at the new ChildCursor, for
// children not yet added).
func (m *Manager) reallocateSubtree(hash primitives.Hash, interval Interval) error {
	rec, err := m.store.get(hash)
	if err != nil {
		return err
	}
	rec.Interval = interval

	if len(rec.Children) == 0 {
		rec.ChildCursor = interval.Start
		m.store.put(hash, rec)
		return nil
	}

	sizes := make([]uint64, len(rec.Children))
	var total uint64
	for i, child := range rec.Children {
		s, err := m.subtreeSize(child)
		if err != nil {
			return err
		}
		sizes[i] = s
		total += s
	}

	usable := interval.Size() / 2
	if usable < total {
		// Not enough slack to reserve half; give existing children the
		// whole interval. The next AddBlock under hash will simply trigger
		// another reindex, climbing further if needed.
		usable = interval.Size()
	}

	cursor := interval.Start
	for i, child := range rec.Children {
		share := sizes[i] * usable / total
		if share == 0 {
			share = 1
		}
		childInterval := Interval{Start: cursor, End: cursor + share - 1}
		if err := m.reallocateSubtree(child, childInterval); err != nil {
			return err
		}
		cursor = childInterval.End + 1
	}
	rec.ChildCursor = cursor
	m.store.put(hash, rec)
	return nil
}
