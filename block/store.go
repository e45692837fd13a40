package block

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/tos-network/tos-core/ghostdag"
	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
	"github.com/tos-network/tos-core/storage"
)

// Store persists headers, their transaction-hash lists, and per-block
// difficulty over a storage.KV, and doubles as a ghostdag.BlockSource so the
// GHOSTDAG manager can read parent/timestamp/difficulty facts directly from
// committed or snapshot-buffered storage. Grounded on the teacher's
// blockheaderstore/blockstore pair (domain/consensus/datastructures/
// blockheaderstore, blockstore), generalized from two separate staged
// stores with a protobuf-backed DB layer into one struct over storage.KV
// using this module's own serializer codec, since the teacher's counterpart
// is reconceived rather than kept: its DomainBlockHeader and staging/commit
// machinery exist only to serve the UTXO consensus processes deleted
// alongside it.
type Store struct {
	kv storage.KV
}

var _ ghostdag.BlockSource = (*Store)(nil)

// NewStore opens a Store over kv (either a committed storage.Backend or a
// block-application storage.Snapshot).
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// PutHeader writes header, keyed by its own hash, plus its difficulty
// record so BlockSource.Difficulty can answer without decoding the whole
// header.
func (s *Store) PutHeader(hash primitives.Hash, header *Header, difficulty primitives.Difficulty, durable bool) error {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	header.Encode(w)
	if w.Err() != nil {
		return w.Err()
	}
	if err := s.kv.Put(storage.ColumnBlocks, storage.HashKey(hash), buf.Bytes(), durable); err != nil {
		return err
	}
	return s.kv.Put(storage.ColumnBlockDifficulty, storage.HashKey(hash), encodeDifficulty(difficulty), durable)
}

// Header returns the header stored under hash.
func (s *Store) Header(hash primitives.Hash) (*Header, error) {
	b, err := s.kv.Get(storage.ColumnBlocks, storage.HashKey(hash))
	if err != nil {
		return nil, err
	}
	r := serializer.NewReader(bytes.NewReader(b))
	h := DecodeHeader(r)
	if r.Err() != nil {
		return nil, r.Err()
	}
	return h, nil
}

// HasHeader reports whether hash has a stored header.
func (s *Store) HasHeader(hash primitives.Hash) (bool, error) {
	return s.kv.Has(storage.ColumnBlocks, storage.HashKey(hash))
}

// PutTxHashes writes a block's ordered transaction-hash list.
func (s *Store) PutTxHashes(hash primitives.Hash, txHashes []primitives.Hash, durable bool) error {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	serializer.WriteVec(w, txHashes, func(w *serializer.Writer, h primitives.Hash) { w.WriteBytes(h[:]) })
	if w.Err() != nil {
		return w.Err()
	}
	return s.kv.Put(storage.ColumnBlockTransactions, storage.HashKey(hash), buf.Bytes(), durable)
}

// TxHashes returns the transaction-hash list stored for hash.
func (s *Store) TxHashes(hash primitives.Hash) ([]primitives.Hash, error) {
	b, err := s.kv.Get(storage.ColumnBlockTransactions, storage.HashKey(hash))
	if err != nil {
		return nil, err
	}
	r := serializer.NewReader(bytes.NewReader(b))
	hashes := serializer.ReadVec(r, func(r *serializer.Reader) primitives.Hash {
		var h primitives.Hash
		copy(h[:], r.ReadBytes(primitives.HashSize))
		return h
	})
	if r.Err() != nil {
		return nil, r.Err()
	}
	return hashes, nil
}

// Parents implements ghostdag.BlockSource.
func (s *Store) Parents(hash primitives.Hash) ([]primitives.Hash, error) {
	h, err := s.Header(hash)
	if err != nil {
		return nil, err
	}
	return h.Parents, nil
}

// Timestamp implements ghostdag.BlockSource.
func (s *Store) Timestamp(hash primitives.Hash) (int64, error) {
	h, err := s.Header(hash)
	if err != nil {
		return 0, err
	}
	return h.TimestampMs, nil
}

// Difficulty implements ghostdag.BlockSource, reading the dedicated
// BlockDifficulty column rather than decoding the full header.
func (s *Store) Difficulty(hash primitives.Hash) (primitives.Difficulty, error) {
	b, err := s.kv.Get(storage.ColumnBlockDifficulty, storage.HashKey(hash))
	if err != nil {
		return primitives.Difficulty{}, err
	}
	return decodeDifficulty(b), nil
}

func encodeDifficulty(d primitives.Difficulty) []byte {
	return d.Big().Bytes()
}

func decodeDifficulty(b []byte) primitives.Difficulty {
	n := new(big.Int).SetBytes(b)
	return primitives.NewDifficulty(n)
}

// PutTopo records hash's topological position, both directions (spec
// §4.1's TopoByHash and HashAtTopo columns).
func (s *Store) PutTopo(hash primitives.Hash, topoheight uint64, durable bool) error {
	if err := s.kv.Put(storage.ColumnTopoByHash, storage.HashKey(hash), encodeTopoheight(topoheight), durable); err != nil {
		return err
	}
	return s.kv.Put(storage.ColumnHashAtTopo, storage.TopoheightKey(topoheight), storage.HashKey(hash), durable)
}

// TopoByHash returns the topoheight recorded for hash.
func (s *Store) TopoByHash(hash primitives.Hash) (uint64, error) {
	b, err := s.kv.Get(storage.ColumnTopoByHash, storage.HashKey(hash))
	if err != nil {
		return 0, err
	}
	return decodeTopoheight(b), nil
}

// HashAtTopo returns the block hash recorded at topoheight.
func (s *Store) HashAtTopo(topoheight uint64) (primitives.Hash, error) {
	b, err := s.kv.Get(storage.ColumnHashAtTopo, storage.TopoheightKey(topoheight))
	if err != nil {
		return primitives.Hash{}, err
	}
	h, err := primitives.HashFromBytes(b)
	if err != nil {
		return primitives.Hash{}, err
	}
	return h, nil
}

func encodeTopoheight(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

func decodeTopoheight(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}
