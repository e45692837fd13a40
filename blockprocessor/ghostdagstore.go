package blockprocessor

import (
	"bytes"
	"math/big"

	"github.com/tos-network/tos-core/ghostdag"
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
	"github.com/tos-network/tos-core/storage"
)

func bigFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// ghostdagStore implements ghostdag.DataStore over storage.KV's
// ColumnGhostdagData, grounded on the teacher's ghostdagdatastore
// (domain/consensus/datastructures/ghostdagdatastore/ghostdagdatastore.go),
// generalized from its staging-map/LRU-cache/protobuf-serialization shape
// into a direct codec over this module's own serializer package — the
// processor itself already gives every block-application a single
// storage.Snapshot to stage writes against, so a second staging layer
// inside the store would just duplicate that buffering.
type ghostdagStore struct {
	kv storage.KV
}

var _ ghostdag.DataStore = (*ghostdagStore)(nil)

func newGhostdagStore(kv storage.KV) *ghostdagStore {
	return &ghostdagStore{kv: kv}
}

func (s *ghostdagStore) Get(hash primitives.Hash) (*ghostdag.GhostdagData, error) {
	b, err := s.kv.Get(storage.ColumnGhostdagData, storage.HashKey(hash))
	if err == storage.ErrNotFound {
		return nil, ghostdag.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeGhostdagData(b)
}

func (s *ghostdagStore) Put(hash primitives.Hash, data *ghostdag.GhostdagData) error {
	return s.kv.Put(storage.ColumnGhostdagData, storage.HashKey(hash), encodeGhostdagData(data), false)
}

func encodeGhostdagData(d *ghostdag.GhostdagData) []byte {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	w.WriteUint64(d.BlueScore)
	work := d.BlueWork.Big().Bytes()
	w.WriteVarInt(uint64(len(work)))
	w.WriteBytes(work)
	w.WriteBytes(d.SelectedParent[:])
	w.WriteBool(d.IsGenesis)
	writeHashVec(w, d.MergesetBlues)
	writeHashVec(w, d.MergesetReds)
	w.WriteVarInt(uint64(len(d.BluesAnticoneSizes)))
	for h, size := range d.BluesAnticoneSizes {
		w.WriteBytes(h[:])
		w.WriteUint32(size)
	}
	writeHashVec(w, d.MergesetNonDAA)
	return buf.Bytes()
}

func decodeGhostdagData(b []byte) (*ghostdag.GhostdagData, error) {
	r := serializer.NewReader(bytes.NewReader(b))
	d := &ghostdag.GhostdagData{}
	d.BlueScore = r.ReadUint64()
	workLen := r.ReadVarInt()
	work := r.ReadBytes(int(workLen))
	d.BlueWork = primitives.BlueWorkFromBig(bigFromBytes(work))
	copy(d.SelectedParent[:], r.ReadBytes(primitives.HashSize))
	d.IsGenesis = r.ReadBool()
	d.MergesetBlues = readHashVec(r)
	d.MergesetReds = readHashVec(r)
	n := r.ReadVarInt()
	if n > 0 {
		d.BluesAnticoneSizes = make(map[primitives.Hash]uint32, n)
		for i := uint64(0); i < n; i++ {
			var h primitives.Hash
			copy(h[:], r.ReadBytes(primitives.HashSize))
			d.BluesAnticoneSizes[h] = r.ReadUint32()
		}
	}
	d.MergesetNonDAA = readHashVec(r)
	if r.Err() != nil {
		return nil, r.Err()
	}
	return d, nil
}

func writeHashVec(w *serializer.Writer, hashes []primitives.Hash) {
	serializer.WriteVec(w, hashes, func(w *serializer.Writer, h primitives.Hash) { w.WriteBytes(h[:]) })
}

func readHashVec(r *serializer.Reader) []primitives.Hash {
	return serializer.ReadVec(r, func(r *serializer.Reader) primitives.Hash {
		var h primitives.Hash
		copy(h[:], r.ReadBytes(primitives.HashSize))
		return h
	})
}
