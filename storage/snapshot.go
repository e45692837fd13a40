package storage

import "sync"

// Snapshot buffers a sequence of per-column puts and deletes plus
// shadow-reads against the underlying Backend, per spec §4.1: "a snapshot
// buffers a sequence of per-column puts/deletes and shadow-reads (reads
// consult snapshot first, then the underlying store). commit() applies the
// whole buffer atomically; rollback() (drop) discards it." Every
// block-application transaction uses exactly one Snapshot (spec
// invariant).
//
// Grounded on the teacher's ffldb transaction (infrastructure/database/ffldb/
// transaction.go), generalized from a single ldb.LevelDBTransaction into a
// backend-agnostic buffer so it works the same way over storage/ldb and
// storage/memdb.
type Snapshot struct {
	mu      sync.Mutex
	backend Backend
	// ops preserves insertion order so Commit replays writes in the order
	// the caller issued them (relevant when a caller deliberately orders
	// child-data writes before the parent-pointer write that references
	// them, per spec §4.1's write-ordering rule).
	ops []writeOp
	// index gives O(1) shadow-read lookup: the most recent buffered op for
	// a given (column, key), so repeated reads during one apply see their
	// own uncommitted writes.
	index  map[Column]map[string]*writeOp
	closed bool
}

type opKind int

const (
	opPut opKind = iota
	opDelete
)

type writeOp struct {
	kind    opKind
	column  Column
	key     []byte
	value   []byte
	durable bool
}

// NewSnapshot opens a snapshot against backend.
func NewSnapshot(backend Backend) *Snapshot {
	return &Snapshot{
		backend: backend,
		index:   make(map[Column]map[string]*writeOp),
	}
}

// Put buffers a write. It is not visible to other snapshots or the
// underlying backend until Commit.
func (s *Snapshot) Put(column Column, key, value []byte, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	op := writeOp{kind: opPut, column: column, key: append([]byte(nil), key...), value: append([]byte(nil), value...), durable: durable}
	s.ops = append(s.ops, op)
	s.indexOp(&s.ops[len(s.ops)-1])
	return nil
}

// Delete buffers a tombstone.
func (s *Snapshot) Delete(column Column, key []byte, durable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	op := writeOp{kind: opDelete, column: column, key: append([]byte(nil), key...), durable: durable}
	s.ops = append(s.ops, op)
	s.indexOp(&s.ops[len(s.ops)-1])
	return nil
}

func (s *Snapshot) indexOp(op *writeOp) {
	m, ok := s.index[op.column]
	if !ok {
		m = make(map[string]*writeOp)
		s.index[op.column] = m
	}
	m[string(op.key)] = op
}

// Get performs a shadow-read: the snapshot's own pending writes take
// priority over the underlying backend, and a pending delete shadows a
// value that still exists on disk.
func (s *Snapshot) Get(column Column, key []byte) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if m, ok := s.index[column]; ok {
		if op, ok := m[string(key)]; ok {
			s.mu.Unlock()
			if op.kind == opDelete {
				return nil, ErrNotFound
			}
			return append([]byte(nil), op.value...), nil
		}
	}
	s.mu.Unlock()
	return s.backend.Get(column, key)
}

// Has is the shadow-read analogue of Backend.Has.
func (s *Snapshot) Has(column Column, key []byte) (bool, error) {
	_, err := s.Get(column, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Commit applies every buffered op to the backend, in issue order, and
// marks the snapshot closed. A snapshot must not be reused after Commit.
func (s *Snapshot) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, op := range s.ops {
		var err error
		switch op.kind {
		case opPut:
			err = s.backend.Put(op.column, op.key, op.value, op.durable)
		case opDelete:
			err = s.backend.Delete(op.column, op.key, op.durable)
		}
		if err != nil {
			s.closed = true
			return err
		}
	}
	s.closed = true
	return nil
}

// Rollback discards every buffered op without touching the backend. Safe to
// call unconditionally in a defer; it is a no-op after Commit.
func (s *Snapshot) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ops = nil
	s.index = nil
}

// pendingForColumn returns the buffered ops for a column, used by the
// snapshot-aware iterator to merge pending state with the backend's
// iterator.
func (s *Snapshot) pendingForColumn(column Column) map[string]*writeOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index[column]
}
