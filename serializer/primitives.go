package serializer

import "github.com/tos-network/tos-core/primitives"

// WriteHash writes a fixed-width 32-byte Hash with no length prefix.
func WriteHash(w *Writer, h primitives.Hash) { w.WriteBytes(h[:]) }

// ReadHash reads a fixed-width 32-byte Hash.
func ReadHash(r *Reader) primitives.Hash {
	var h primitives.Hash
	copy(h[:], r.ReadBytes(primitives.HashSize))
	return h
}

// WritePublicKey writes a fixed-width 32-byte PublicKey with no length prefix.
func WritePublicKey(w *Writer, p primitives.PublicKey) { w.WriteBytes(p[:]) }

// ReadPublicKeyBytes reads the raw 32 bytes of a public key without
// performing the curve check (the caller decides when validation happens,
// since during verify() a malformed point should surface as
// InvalidSignature, not as a decode error).
func ReadPublicKeyBytes(r *Reader) [primitives.PublicKeySize]byte {
	var b [primitives.PublicKeySize]byte
	copy(b[:], r.ReadBytes(primitives.PublicKeySize))
	return b
}

// WriteSignature writes a fixed-width 64-byte Signature with no length prefix.
func WriteSignature(w *Writer, s primitives.Signature) { w.WriteBytes(s[:]) }

// ReadSignature reads a fixed-width 64-byte Signature.
func ReadSignature(r *Reader) primitives.Signature {
	var s primitives.Signature
	copy(s[:], r.ReadBytes(primitives.SignatureSize))
	return s
}
