// Package storage implements the L2 column-family-oriented key/value store:
// topoheight-versioned account state, snapshots for atomic multi-column
// writes, and range iteration, per spec §4.1. It is grounded on the
// teacher's infrastructure/database (ffldb transaction.go) and
// database2.Database/Cursor interfaces, generalized from a single flat
// keyspace into named columns (spec's "Polymorphism over storage backends"
// design note in §9: a capability set any backend can satisfy).
package storage

// Backend is the capability set a storage engine must provide. Anything
// satisfying Backend is a valid store: an on-disk LevelDB instance
// (storage/ldb) or an in-memory map (storage/memdb, used in tests). The
// reachability, GHOSTDAG, and transaction-apply layers depend only on this
// interface, never on a concrete backend.
type Backend interface {
	// Get retrieves the value for key in column. Returns ErrNotFound if
	// absent.
	Get(column Column, key []byte) ([]byte, error)
	// Has reports whether key exists in column.
	Has(column Column, key []byte) (bool, error)
	// Put writes key/value into column. durable controls whether the write
	// must be fsync'd before Put returns (spec §4.1: critical vs
	// non-critical writes).
	Put(column Column, key, value []byte, durable bool) error
	// Delete removes key from column. Same durability rule as Put.
	Delete(column Column, key []byte, durable bool) error
	// Iterator returns a range iterator over column per the requested mode.
	Iterator(column Column, mode IterMode) (Iterator, error)
	// Flush forces any buffered writes to the underlying medium.
	Flush() error
	// Close releases the backend's resources. Implementations should flush
	// and wait for any in-progress compaction, per spec §5 ("stop()
	// flushes, compacts, and waits for compaction before returning").
	Close() error
}

// Iterator walks a column's keyspace in a Backend-defined order honoring
// the requested IterMode.
type Iterator interface {
	// Next advances the iterator. Returns false when exhausted or on error;
	// check Err() to distinguish the two.
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Direction controls ascending/descending range iteration.
type Direction int

const (
	// Ascending iterates from the lowest key to the highest.
	Ascending Direction = iota
	// Descending iterates from the highest key to the lowest.
	Descending
)

// IterModeKind discriminates the four range-iteration modes required by
// spec §4.1.
type IterModeKind int

const (
	// ModeStart iterates the whole column from its lowest key (direction
	// applies).
	ModeStart IterModeKind = iota
	// ModeEnd iterates the whole column from its highest key (direction
	// applies, typically Descending).
	ModeEnd
	// ModeFrom iterates starting at (and including) a given key.
	ModeFrom
	// ModeWithPrefix iterates only keys sharing a given prefix.
	ModeWithPrefix
)

// IterMode fully describes a range-iteration request.
type IterMode struct {
	Kind      IterModeKind
	Key       []byte // used by ModeFrom
	Prefix    []byte // used by ModeWithPrefix
	Direction Direction
}

// Start returns the "iterate the whole column ascending/descending" mode.
func Start(dir Direction) IterMode { return IterMode{Kind: ModeStart, Direction: dir} }

// End returns the "iterate the whole column from its end" mode.
func End(dir Direction) IterMode { return IterMode{Kind: ModeEnd, Direction: dir} }

// From returns the "iterate starting at key" mode.
func From(key []byte, dir Direction) IterMode {
	return IterMode{Kind: ModeFrom, Key: key, Direction: dir}
}

// WithPrefix returns the "iterate keys sharing prefix" mode.
func WithPrefix(prefix []byte, dir Direction) IterMode {
	return IterMode{Kind: ModeWithPrefix, Prefix: prefix, Direction: dir}
}
