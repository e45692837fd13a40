package primitives

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// PublicKeySize is the length in bytes of a compressed Edwards/Ristretto point.
const PublicKeySize = 32

// PublicKey identifies an account: a 32-byte compressed curve point. Not
// every 32-byte string decompresses to a valid point, so construction from
// untrusted bytes goes through NewPublicKey, which performs the curve check.
type PublicKey [PublicKeySize]byte

// ErrInvalidPublicKey is returned when a byte string does not decompress to
// a point on the curve.
var ErrInvalidPublicKey = errors.New("public key does not decompress to a valid curve point")

// Verifier decompresses and verifies points/signatures. It is implemented by
// the concrete curve library wired into the daemon; primitives depends only
// on this interface so the curve implementation is swappable (see
// SPEC_FULL.md domain-stack table).
type Verifier interface {
	// IsValidPoint reports whether b decompresses to a point on the curve.
	IsValidPoint(b [PublicKeySize]byte) bool
	// VerifySignature verifies sig over message under pub.
	VerifySignature(pub PublicKey, message []byte, sig Signature) bool
}

var activeVerifier Verifier = noopVerifier{}

// SetVerifier installs the curve implementation used by NewPublicKey and
// Signature.Verify. Called once during daemon startup.
func SetVerifier(v Verifier) {
	if v == nil {
		v = noopVerifier{}
	}
	activeVerifier = v
}

// NewPublicKey validates b as a compressed curve point and returns a
// PublicKey. Returns ErrInvalidPublicKey if the curve check fails.
func NewPublicKey(b [PublicKeySize]byte) (PublicKey, error) {
	if !activeVerifier.IsValidPoint(b) {
		return PublicKey{}, ErrInvalidPublicKey
	}
	return PublicKey(b), nil
}

// String returns the lowercase hex encoding of the public key.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of the underlying bytes.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeySize)
	copy(b, p[:])
	return b
}

// IsZero reports whether p is the all-zero key (never a valid account).
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// noopVerifier accepts every point and rejects every signature; it exists so
// packages can be constructed and unit-tested before a real curve library is
// wired in, without silently treating attacker input as valid in production
// (VerifySignature always fails closed).
type noopVerifier struct{}

func (noopVerifier) IsValidPoint(_ [PublicKeySize]byte) bool { return true }
func (noopVerifier) VerifySignature(_ PublicKey, _ []byte, _ Signature) bool {
	return false
}
