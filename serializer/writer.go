// Package serializer implements the L1 deterministic little-endian binary
// codec described in spec §2/§6.1: fixed-width integers, size-prefixed
// vectors, and an option flag byte. It is grounded on the
// teacher's wire/common.go ReadElement/WriteElement/VarInt idiom, adapted
// from a reflection-based dispatch into explicit typed methods (the spec's
// wire formats are closed and known in advance, so explicit methods read
// better than a type-switch over interface{}).
package serializer

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ErrNonCanonicalVarInt mirrors the teacher's canonical-varint-encoding
// check: a length could have been encoded in fewer bytes.
var ErrNonCanonicalVarInt = errors.New("non-canonical varint encoding")

// MaxVecLen bounds how large a size-prefixed vector read from the wire may
// claim to be, preventing a malformed length prefix from driving an
// unbounded allocation.
const MaxVecLen = 1 << 24

// Writer accumulates a deterministic little-endian byte encoding.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps an io.Writer (typically a *bytes.Buffer when building a
// signing pre-image, or the underlying connection/file when streaming).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any. Every Write* method is a
// no-op once Err is non-nil, so callers can chain calls and check once at
// the end.
func (w *Writer) Err() error { return w.err }

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) { w.write([]byte{v}) }

// WriteBool writes a one-byte boolean (0x00/0x01).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteUint32 writes v little-endian.
func (w *Writer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

// WriteUint64 writes v little-endian.
func (w *Writer) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.write(buf[:])
}

// WriteInt64 writes v little-endian as its uint64 bit pattern.
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteBytes writes raw bytes with no length prefix (used for fixed-width
// fields like Hash, PublicKey, Signature).
func (w *Writer) WriteBytes(b []byte) { w.write(b) }

// WriteVarInt writes val using the teacher's canonical varint discriminant
// scheme: values below 0xfd are a single byte; larger values are prefixed
// by 0xfd/0xfe/0xff followed by a uint16/uint32/uint64.
func (w *Writer) WriteVarInt(val uint64) {
	switch {
	case val < 0xfd:
		w.WriteUint8(uint8(val))
	case val <= math.MaxUint16:
		w.WriteUint8(0xfd)
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(val))
		w.write(buf[:])
	case val <= math.MaxUint32:
		w.WriteUint8(0xfe)
		w.WriteUint32(uint32(val))
	default:
		w.WriteUint8(0xff)
		w.WriteUint64(val)
	}
}

// WriteVec writes a size-prefixed vector: a VarInt count followed by n calls
// to writeElem, one per element. Used for parents, transfers, multisig
// participants, account_keys, etc.
func WriteVec[T any](w *Writer, elems []T, writeElem func(*Writer, T)) {
	w.WriteVarInt(uint64(len(elems)))
	for _, e := range elems {
		if w.err != nil {
			return
		}
		writeElem(w, e)
	}
}

// WriteOption writes the one-byte presence flag followed by the value if
// present (spec §6.1: "Optionals are a 1-byte presence flag followed by the
// value").
func WriteOption[T any](w *Writer, v *T, writeVal func(*Writer, T)) {
	if v == nil {
		w.WriteBool(false)
		return
	}
	w.WriteBool(true)
	writeVal(w, *v)
}
