package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// KV is the read/write capability both Backend and *Snapshot satisfy. The
// versioned store is written against KV so the same code path serves reads
// during block application (against a Snapshot, honouring its pending
// writes) and read-only queries against the committed Backend.
type KV interface {
	Get(column Column, key []byte) ([]byte, error)
	Has(column Column, key []byte) (bool, error)
	Put(column Column, key, value []byte, durable bool) error
	Delete(column Column, key []byte, durable bool) error
}

// VersionedEntry is one historical value in a versioned column's back-
// pointer chain: the value as of Topoheight, plus the topoheight of the
// previous version (0 and PreviousExists=false for the first version).
type VersionedEntry struct {
	Value          []byte
	PreviousTopo   uint64
	PreviousExists bool
}

func encodeVersionedEntry(e VersionedEntry) []byte {
	out := make([]byte, 9+len(e.Value))
	if e.PreviousExists {
		out[0] = 1
	}
	binary.BigEndian.PutUint64(out[1:9], e.PreviousTopo)
	copy(out[9:], e.Value)
	return out
}

func decodeVersionedEntry(b []byte) (VersionedEntry, error) {
	if len(b) < 9 {
		return VersionedEntry{}, errors.New("corrupt versioned entry: too short")
	}
	return VersionedEntry{
		PreviousExists: b[0] == 1,
		PreviousTopo:   binary.BigEndian.Uint64(b[1:9]),
		Value:          append([]byte(nil), b[9:]...),
	}, nil
}

// VersionedStore provides point-in-time reads over a (pointerColumn,
// versionedColumn) pair, per spec §3.2/§4.1/§6.5: the pointer column maps
// entityKey -> latest topoheight written; the versioned column stores the
// value at each topoheight plus a back-pointer to the previous version, so
// a read "as of topoheight T" walks the chain down from the latest entry
// until it finds a version with Topoheight <= T.
type VersionedStore struct {
	kv              KV
	pointerColumn   Column
	versionedColumn Column
}

// NewVersionedStore constructs a VersionedStore over the given column pair
// (e.g. ColumnBalances/ColumnVersionedBalances, or
// ColumnNonces/ColumnVersionedNonces).
func NewVersionedStore(kv KV, pointerColumn, versionedColumn Column) *VersionedStore {
	return &VersionedStore{kv: kv, pointerColumn: pointerColumn, versionedColumn: versionedColumn}
}

// latestTopoheight returns the most recent topoheight at which entityKey
// was written, or (0, false) if it has never been written.
func (vs *VersionedStore) latestTopoheight(entityKey []byte) (uint64, bool, error) {
	b, err := vs.kv.Get(vs.pointerColumn, entityKey)
	if err == ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(b) != 8 {
		return 0, false, errors.New("corrupt pointer entry")
	}
	return binary.BigEndian.Uint64(b), true, nil
}

// Latest returns the most recently written value for entityKey, or
// ErrNotFound if the entity has never been written.
func (vs *VersionedStore) Latest(entityKey []byte) ([]byte, error) {
	topo, ok, err := vs.latestTopoheight(entityKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	entry, err := vs.readEntry(entityKey, topo)
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// AsOf returns entityKey's value as of topoheight (the latest write with
// Topoheight <= topoheight), or ErrNotFound if no such version exists.
func (vs *VersionedStore) AsOf(entityKey []byte, topoheight uint64) ([]byte, error) {
	cursor, ok, err := vs.latestTopoheight(entityKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	for {
		entry, err := vs.readEntry(entityKey, cursor)
		if err != nil {
			return nil, err
		}
		if cursor <= topoheight {
			return entry.Value, nil
		}
		if !entry.PreviousExists {
			return nil, ErrNotFound
		}
		cursor = entry.PreviousTopo
	}
}

func (vs *VersionedStore) readEntry(entityKey []byte, topo uint64) (VersionedEntry, error) {
	raw, err := vs.kv.Get(vs.versionedColumn, VersionedKey(topo, entityKey))
	if err != nil {
		return VersionedEntry{}, err
	}
	return decodeVersionedEntry(raw)
}

// Put writes a new version of entityKey at topoheight, chaining it to the
// previous latest version (if any), and advances the pointer column.
// durable controls whether the two underlying writes are fsync'd (spec
// §4.1: block-commit-path writes are critical).
func (vs *VersionedStore) Put(entityKey []byte, topoheight uint64, value []byte, durable bool) error {
	prevTopo, hasPrev, err := vs.latestTopoheight(entityKey)
	if err != nil {
		return err
	}
	entry := VersionedEntry{Value: value, PreviousTopo: prevTopo, PreviousExists: hasPrev}
	if err := vs.kv.Put(vs.versionedColumn, VersionedKey(topoheight, entityKey), encodeVersionedEntry(entry), durable); err != nil {
		return err
	}
	var ptr [8]byte
	binary.BigEndian.PutUint64(ptr[:], topoheight)
	return vs.kv.Put(vs.pointerColumn, entityKey, ptr[:], durable)
}
