package storage

import (
	"encoding/binary"

	"github.com/tos-network/tos-core/primitives"
)

// TopoheightKey encodes a topoheight as a big-endian uint64, so that
// ascending key iteration yields ascending topoheight order (spec §4.1:
// HashAtTopo is keyed by "topoheight (BE u64)").
func TopoheightKey(topoheight uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], topoheight)
	return buf[:]
}

// VersionedKey encodes the composite key (topoheight_be64 ‖ entityKey) used
// by every versioned column, per spec §6.5: "range iteration descending
// from a given topoheight yields the point-in-time value".
func VersionedKey(topoheight uint64, entityKey []byte) []byte {
	key := make([]byte, 8+len(entityKey))
	binary.BigEndian.PutUint64(key[:8], topoheight)
	copy(key[8:], entityKey)
	return key
}

// SplitVersionedKey reverses VersionedKey, extracting the topoheight prefix
// and the remaining entity key. Used when scanning VersionedBalances etc.
// during descending range iteration to recover which topoheight a given
// entry belongs to.
func SplitVersionedKey(key []byte) (topoheight uint64, entityKey []byte) {
	topoheight = binary.BigEndian.Uint64(key[:8])
	entityKey = key[8:]
	return
}

// AccountAssetKey encodes the (pubkey ‖ asset) composite key used by the
// Balances and VersionedBalances columns.
func AccountAssetKey(account primitives.PublicKey, asset primitives.Hash) []byte {
	key := make([]byte, primitives.PublicKeySize+primitives.HashSize)
	copy(key, account[:])
	copy(key[primitives.PublicKeySize:], asset[:])
	return key
}

// AccountKey encodes a bare account key, used by Nonces, EnergyResources,
// Contracts, and MultisigState, which are not multi-asset.
func AccountKey(account primitives.PublicKey) []byte {
	key := make([]byte, primitives.PublicKeySize)
	copy(key, account[:])
	return key
}

// HashKey encodes a Hash as a raw key, used by Blocks, Transactions,
// GhostdagData, Reachability, TopoByHash, and BlockDifficulty.
func HashKey(h primitives.Hash) []byte {
	key := make([]byte, primitives.HashSize)
	copy(key, h[:])
	return key
}
