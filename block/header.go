// Package block implements the wire-level block representation that sits
// between the transaction and GHOSTDAG layers: the header fields and
// transaction-hash list every other layer reasons about (ghostdag.BlockSource,
// the block processor's apply pipeline, p2p's object payloads), per spec
// §3.2's "Block: header ... + transaction hash list" and §6.1's wire layout.
//
// Grounded on the teacher's domain/consensus/model/externalapi.DomainBlockHeader
// and domain/consensus/database/serialization/blockheader.go (DB<->domain
// conversion) and domain/dagconfig/genesis.go (the hand-built genesis
// header), generalized from the teacher's UTXO fields (HashMerkleRoot,
// AcceptedIDMerkleRoot, UTXOCommitment, Bits) to this account model's fields
// (height, miner, extra_nonce, tips_hash_of_txs) per spec §6.1.
package block

import (
	"bytes"

	"github.com/tos-network/tos-core/primitives"
	"github.com/tos-network/tos-core/serializer"
)

// MaxParents bounds how many parents a header may declare, per spec §3.2
// ("Parents are a set ... ≤32").
const MaxParents = 32

// Header is a block header per spec §6.1's wire layout: version,
// parents_count, parents, timestamp, height, nonce, miner, extra_nonce,
// tips_hash_of_txs.
type Header struct {
	Version      uint8
	Parents      []primitives.Hash
	TimestampMs  int64
	Height       uint64
	Nonce        uint64
	Miner        primitives.PublicKey
	ExtraNonce   primitives.Hash
	TxsHashRoot  primitives.Hash
}

// Block pairs a header with the ordered transaction-hash list it commits
// to, per spec §3.2. The transaction bodies themselves live in storage's
// Transactions column, keyed by hash; Block only carries references.
type Block struct {
	Header *Header
	TxHashes []primitives.Hash
}

// Encode writes header's canonical wire encoding, per spec §6.1.
func (h *Header) Encode(w *serializer.Writer) {
	w.WriteUint8(h.Version)
	serializer.WriteVec(w, h.Parents, func(w *serializer.Writer, p primitives.Hash) { w.WriteBytes(p[:]) })
	w.WriteInt64(h.TimestampMs)
	w.WriteUint64(h.Height)
	w.WriteUint64(h.Nonce)
	w.WriteBytes(h.Miner[:])
	w.WriteBytes(h.ExtraNonce[:])
	w.WriteBytes(h.TxsHashRoot[:])
}

// DecodeHeader reads a Header per Encode's layout.
func DecodeHeader(r *serializer.Reader) *Header {
	h := &Header{}
	h.Version = r.ReadUint8()
	h.Parents = serializer.ReadVec(r, func(r *serializer.Reader) primitives.Hash {
		var p primitives.Hash
		copy(p[:], r.ReadBytes(primitives.HashSize))
		return p
	})
	h.TimestampMs = r.ReadInt64()
	h.Height = r.ReadUint64()
	h.Nonce = r.ReadUint64()
	copy(h.Miner[:], r.ReadBytes(primitives.PublicKeySize))
	copy(h.ExtraNonce[:], r.ReadBytes(primitives.HashSize))
	copy(h.TxsHashRoot[:], r.ReadBytes(primitives.HashSize))
	return h
}

// headerDomainTag domain-separates block-identity hashes from every other
// DomainHash use (transactions, committees), per spec §6.3's domain
// separation requirement.
const headerDomainTag = "tos.block.id"

// Hash returns header's identifying hash: the domain-separated hash of its
// canonical wire encoding. Grounded on the teacher's
// hashserialization/header.go HeaderHash, generalized to this header's
// field set and to BLAKE3 per spec §6.3.
func (h *Header) Hash() primitives.Hash {
	var buf bytes.Buffer
	w := serializer.NewWriter(&buf)
	h.Encode(w)
	return primitives.DomainHash(headerDomainTag, buf.Bytes())
}

// TxsHashRootOf computes the tips_hash_of_txs commitment for an ordered
// transaction-hash list: the domain-separated hash of their concatenation.
// A full Merkle tree is not required by spec §6.1 ("tips_hash_of_txs"
// names a single commitment field, not a root plus proof scheme), so this
// uses the same DomainHash primitive every other commitment in the core
// uses rather than introducing a second hashing scheme.
func TxsHashRootOf(txHashes []primitives.Hash) primitives.Hash {
	fields := make([][]byte, len(txHashes))
	for i, h := range txHashes {
		fields[i] = h[:]
	}
	return primitives.DomainHash("tos.block.txs", fields...)
}
