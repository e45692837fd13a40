// Package ldb is the durable storage.Backend backed by LevelDB, grounded on
// the teacher's infrastructure/db/dbaccess.New (ldb.NewLevelDB(path)) and
// database/ffldb/ldb.LevelDBCursor's prefix-iterator wrapper, generalized
// from a single flat keyspace into named columns by prefixing every key
// with its column name.
package ldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tos-network/tos-core/storage"
)

// DB is a storage.Backend backed by a single on-disk LevelDB instance.
// Columns are emulated by prefixing every physical key with
// "<column>\x00", since LevelDB itself has no notion of column families.
type DB struct {
	ldb    *leveldb.DB
	closed bool
}

// New opens (creating if necessary) a LevelDB instance at path.
func New(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at %s", path)
	}
	return &DB{ldb: db}, nil
}

func physicalKey(column storage.Column, key []byte) []byte {
	out := make([]byte, len(column)+1+len(key))
	n := copy(out, column)
	out[n] = 0
	copy(out[n+1:], key)
	return out
}

func columnPrefix(column storage.Column) []byte {
	out := make([]byte, len(column)+1)
	n := copy(out, column)
	out[n] = 0
	return out
}

func (db *DB) Get(column storage.Column, key []byte) ([]byte, error) {
	if db.closed {
		return nil, storage.ErrClosed
	}
	value, err := db.ldb.Get(physicalKey(column, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return value, nil
}

func (db *DB) Has(column storage.Column, key []byte) (bool, error) {
	if db.closed {
		return false, storage.ErrClosed
	}
	ok, err := db.ldb.Has(physicalKey(column, key), nil)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return ok, nil
}

// Put writes key/value into column. durable requests a sync'd write, per
// spec §4.1's critical/non-critical write distinction (e.g. a finalized
// block's tip pointer is critical; intermediate GHOSTDAG bookkeeping is
// not).
func (db *DB) Put(column storage.Column, key, value []byte, durable bool) error {
	if db.closed {
		return storage.ErrClosed
	}
	err := db.ldb.Put(physicalKey(column, key), value, &opt.WriteOptions{Sync: durable})
	return errors.WithStack(err)
}

func (db *DB) Delete(column storage.Column, key []byte, durable bool) error {
	if db.closed {
		return storage.ErrClosed
	}
	err := db.ldb.Delete(physicalKey(column, key), &opt.WriteOptions{Sync: durable})
	return errors.WithStack(err)
}

func (db *DB) Flush() error {
	if db.closed {
		return storage.ErrClosed
	}
	return nil
}

// Close flushes pending compactions and releases the LevelDB handle, per
// spec §5's shutdown sequence.
func (db *DB) Close() error {
	if db.closed {
		return storage.ErrClosed
	}
	db.closed = true
	return errors.WithStack(db.ldb.Close())
}

// Iterator opens a range iterator over column honoring mode, backed by a
// native LevelDB iterator restricted to the column's key prefix.
func (db *DB) Iterator(column storage.Column, mode storage.IterMode) (storage.Iterator, error) {
	if db.closed {
		return nil, storage.ErrClosed
	}
	prefix := columnPrefix(column)

	var ldbRange *util.Range
	switch mode.Kind {
	case storage.ModeWithPrefix:
		ldbRange = util.BytesPrefix(append(append([]byte(nil), prefix...), mode.Prefix...))
	default:
		ldbRange = util.BytesPrefix(prefix)
	}

	it := db.ldb.NewIterator(ldbRange, nil)
	var seekKey []byte
	if mode.Kind == storage.ModeFrom {
		seekKey = physicalKey(column, mode.Key)
	}

	return &cursorIterator{
		ldbIterator: it,
		prefix:      prefix,
		direction:   mode.Direction,
		mode:        mode.Kind,
		seekKey:     seekKey,
	}, nil
}

// cursorIterator adapts a native leveldb/iterator.Iterator (bidirectional,
// positioned via Seek/Next/Prev) to storage.Iterator's unidirectional
// Next()-only contract, walking forward or backward per direction. It
// positions itself lazily on the first Next() call, per mode.
type cursorIterator struct {
	ldbIterator iterator.Iterator
	prefix      []byte
	direction   storage.Direction
	mode        storage.IterModeKind
	seekKey     []byte
	started     bool
	closed      bool
}

func (c *cursorIterator) Next() bool {
	if c.closed {
		return false
	}
	if !c.started {
		c.started = true
		return c.seek()
	}
	if c.direction == storage.Descending {
		return c.ldbIterator.Prev()
	}
	return c.ldbIterator.Next()
}

// seek positions the iterator at its first entry, honoring both mode and
// direction: a descending ModeFrom seek whose key lies past the last entry
// is clamped to the last entry, while an ascending ModeFrom seek past the
// end leaves the iterator exhausted.
func (c *cursorIterator) seek() bool {
	if c.mode != storage.ModeFrom {
		if c.direction == storage.Descending {
			return c.ldbIterator.Last()
		}
		return c.ldbIterator.First()
	}
	if c.direction == storage.Ascending {
		return c.ldbIterator.Seek(c.seekKey)
	}
	// Descending ModeFrom: find the greatest key <= seekKey.
	if !c.ldbIterator.Seek(c.seekKey) {
		return c.ldbIterator.Last()
	}
	if string(c.ldbIterator.Key()) == string(c.seekKey) {
		return true
	}
	return c.ldbIterator.Prev()
}

func (c *cursorIterator) Key() []byte {
	full := c.ldbIterator.Key()
	if full == nil {
		return nil
	}
	return full[len(c.prefix):]
}

func (c *cursorIterator) Value() []byte {
	return c.ldbIterator.Value()
}

func (c *cursorIterator) Err() error {
	return errors.WithStack(c.ldbIterator.Error())
}

func (c *cursorIterator) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.ldbIterator.Release()
	return nil
}
