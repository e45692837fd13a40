// Package primitives implements the L0 layer of the core: fixed-size
// identifiers, arbitrary-precision work accounting, and domain-separated
// hashing. Nothing here depends on storage, consensus, or the network.
package primitives

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"lukechampine.com/blake3"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 32

// Hash is an opaque 32-byte identifier used for blocks, transactions,
// committees, and any other domain-separated derivation. It orders by
// lexicographic byte comparison.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash, used as a sentinel (e.g. genesis parent).
var ZeroHash = Hash{}

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the underlying bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Less implements the lexicographic byte-ordering used as a consensus
// tie-break (e.g. selected-parent tie-break in ghostdag, mergeset sort).
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Compare returns -1, 0, or 1 following bytes.Compare semantics.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// HashFromBytes copies b into a Hash. b must be exactly HashSize long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, errInvalidHashLength(len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex decodes a hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		var zero Hash
		return zero, err
	}
	return HashFromBytes(b)
}

// SortHashes sorts hashes ascending in place by lexicographic byte order.
func SortHashes(hashes []Hash) {
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
}

// DomainHash derives a domain-separated hash from a tag and a sequence of
// fields, following the pattern used for committee/KYC operations in
// §6.3: blake3(tag ‖ field0 ‖ field1 ‖ ...). Every field is expected to
// already be in its canonical little-endian or fixed-width byte form;
// callers are responsible for that encoding (see serializer.Writer helpers).
func DomainHash(tag string, fields ...[]byte) Hash {
	hasher := blake3.New(HashSize, nil)
	hasher.Write([]byte(tag))
	for _, f := range fields {
		hasher.Write(f)
	}
	var out Hash
	copy(out[:], hasher.Sum(nil))
	return out
}

type errInvalidHashLength int

func (e errInvalidHashLength) Error() string {
	return fmt.Sprintf("invalid hash length: expected 32 bytes, got %d", int(e))
}
