package primitives

import "encoding/hex"

// SignatureSize is the length in bytes of a canonical Schnorr-style signature.
const SignatureSize = 64

// Signature is a canonical signature over a message. Verification requires
// decompressing the signer's PublicKey; see Verifier.
type Signature [SignatureSize]byte

// String returns the lowercase hex encoding of the signature.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Bytes returns a copy of the underlying bytes.
func (s Signature) Bytes() []byte {
	b := make([]byte, SignatureSize)
	copy(b, s[:])
	return b
}

// Verify checks sig over message under the signer's public key, using the
// Verifier installed via SetVerifier.
func Verify(pub PublicKey, message []byte, sig Signature) bool {
	return activeVerifier.VerifySignature(pub, message, sig)
}
