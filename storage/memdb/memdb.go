// Package memdb is an in-memory storage.Backend used by tests that need a
// real Backend/Iterator implementation without touching disk, grounded on
// the same Put/Get/Has/Delete/Cursor shape as infrastructure/database/ffldb's
// on-disk transaction, generalized to plain Go maps.
package memdb

import (
	"sort"
	"sync"

	"github.com/tos-network/tos-core/storage"
)

// DB is a process-local, column-namespaced key/value store. It satisfies
// storage.Backend. durable is accepted on every write for interface
// compatibility but has no effect: there is nothing to fsync.
type DB struct {
	mu      sync.RWMutex
	columns map[storage.Column]map[string][]byte
	closed  bool
}

// New returns an empty DB with every known column pre-allocated.
func New() *DB {
	db := &DB{columns: make(map[storage.Column]map[string][]byte)}
	for _, c := range storage.AllColumns() {
		db.columns[c] = make(map[string][]byte)
	}
	return db
}

func (db *DB) columnMap(column storage.Column) map[string][]byte {
	m, ok := db.columns[column]
	if !ok {
		m = make(map[string][]byte)
		db.columns[column] = m
	}
	return m
}

func (db *DB) Get(column storage.Column, key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, storage.ErrClosed
	}
	v, ok := db.columnMap(column)[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (db *DB) Has(column storage.Column, key []byte) (bool, error) {
	_, err := db.Get(column, key)
	if err == storage.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (db *DB) Put(column storage.Column, key, value []byte, _ bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return storage.ErrClosed
	}
	db.columnMap(column)[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *DB) Delete(column storage.Column, key []byte, _ bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return storage.ErrClosed
	}
	delete(db.columnMap(column), string(key))
	return nil
}

func (db *DB) Flush() error { return nil }

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

// Iterator snapshots the column's keys under the read lock, sorts them per
// mode, and iterates the sorted slice lock-free, matching the ordering and
// mode semantics storage.Backend implementations are required to provide.
func (db *DB) Iterator(column storage.Column, mode storage.IterMode) (storage.Iterator, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, storage.ErrClosed
	}

	type entry struct {
		key   string
		value []byte
	}
	var entries []entry
	for k, v := range db.columnMap(column) {
		if !memdbMatchesMode(mode, []byte(k)) {
			continue
		}
		entries = append(entries, entry{key: k, value: append([]byte(nil), v...)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if mode.Direction == storage.Descending {
			return entries[i].key > entries[j].key
		}
		return entries[i].key < entries[j].key
	})

	it := &iterator{pos: -1}
	it.keys = make([][]byte, len(entries))
	it.values = make([][]byte, len(entries))
	for i, e := range entries {
		it.keys[i] = []byte(e.key)
		it.values[i] = e.value
	}
	return it, nil
}

func memdbMatchesMode(mode storage.IterMode, key []byte) bool {
	switch mode.Kind {
	case storage.ModeStart, storage.ModeEnd:
		return true
	case storage.ModeFrom:
		if mode.Direction == storage.Descending {
			return string(key) <= string(mode.Key)
		}
		return string(key) >= string(mode.Key)
	case storage.ModeWithPrefix:
		if len(key) < len(mode.Prefix) {
			return false
		}
		return string(key[:len(mode.Prefix)]) == string(mode.Prefix)
	default:
		return true
	}
}

type iterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *iterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *iterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *iterator) Err() error   { return nil }
func (it *iterator) Close() error { return nil }
