package reachability

import (
	"bytes"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
	"github.com/tos-network/tos-core/storage"
)

// record is one block's reachability tree node: its allocated Interval, the
// cursor marking how much of that interval has been handed to children so
// far, and its tree parent/children. Grounded on the teacher's
// reachabilityData/reachabilityTreeNode pair (domain/blockdag/reachabilitystore.go),
// generalized from an in-memory pointer tree with a dirty-tracking store
// into one keyed by storage.Column directly.
type record struct {
	Interval    Interval
	ChildCursor uint64
	HasParent   bool
	Parent      primitives.Hash
	Children    []primitives.Hash
}

// store is a dirty-tracking cache over storage.KV's ColumnReachability,
// mirroring the teacher's reachabilityStore (domain/blockdag/reachabilitystore.go):
// writes accumulate in an in-memory map and are flushed to the backend in
// one pass, rather than going straight through on every mutation.
type store struct {
	kv     storage.KV
	cache  map[primitives.Hash]*record
	dirty  map[primitives.Hash]bool
}

func newStore(kv storage.KV) *store {
	return &store{
		kv:    kv,
		cache: make(map[primitives.Hash]*record),
		dirty: make(map[primitives.Hash]bool),
	}
}

func (s *store) get(hash primitives.Hash) (*record, error) {
	if r, ok := s.cache[hash]; ok {
		return r, nil
	}
	raw, err := s.kv.Get(storage.ColumnReachability, storage.HashKey(hash))
	if err != nil {
		return nil, err
	}
	r, err := decodeRecord(raw)
	if err != nil {
		return nil, err
	}
	s.cache[hash] = r
	return r, nil
}

func (s *store) put(hash primitives.Hash, r *record) {
	s.cache[hash] = r
	s.dirty[hash] = true
}

// flush writes every dirty record to the backend. Reachability bookkeeping
// is not on the critical durability path (spec §4.1's non-critical write
// category): a crash before flush only loses index density, not
// correctness, since AddBlock is idempotent from genesis.
func (s *store) flush() error {
	for hash := range s.dirty {
		r := s.cache[hash]
		if err := s.kv.Put(storage.ColumnReachability, storage.HashKey(hash), encode(r), false); err != nil {
			return err
		}
	}
	s.dirty = make(map[primitives.Hash]bool)
	return nil
}

// encode/decode use the L1 serializer the same way every other on-disk
// record in this repo does, rather than encoding/gob or a hand-rolled
// layout.
func encode(r *record) []byte {
	buf := &bytes.Buffer{}
	w := serializer.NewWriter(buf)
	w.WriteUint64(r.Interval.Start)
	w.WriteUint64(r.Interval.End)
	w.WriteUint64(r.ChildCursor)
	w.WriteBool(r.HasParent)
	if r.HasParent {
		serializer.WriteHash(w, r.Parent)
	}
	serializer.WriteVec(w, r.Children, serializer.WriteHash)
	return buf.Bytes()
}

func decodeRecord(raw []byte) (*record, error) {
	r := serializer.NewReader(bytes.NewReader(raw))
	rec := &record{}
	rec.Interval.Start = r.ReadUint64()
	rec.Interval.End = r.ReadUint64()
	rec.ChildCursor = r.ReadUint64()
	rec.HasParent = r.ReadBool()
	if rec.HasParent {
		rec.Parent = serializer.ReadHash(r)
	}
	rec.Children = serializer.ReadVec(r, serializer.ReadHash)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}
