package serializer

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Reader decodes the deterministic little-endian encoding produced by Writer.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps an io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) read(b []byte) {
	if r.err != nil {
		return
	}
	_, r.err = io.ReadFull(r.r, b)
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	var buf [1]byte
	r.read(buf[:])
	return buf[0]
}

// ReadBool reads a one-byte boolean.
func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	var buf [4]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	var buf [8]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// ReadInt64 reads a little-endian int64.
func (r *Reader) ReadInt64() int64 { return int64(r.ReadUint64()) }

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) []byte {
	buf := make([]byte, n)
	r.read(buf)
	return buf
}

// ReadVarInt reads a canonically-encoded variable length integer, rejecting
// non-minimal encodings the same way the teacher's wire.ReadVarInt does.
func (r *Reader) ReadVarInt() uint64 {
	if r.err != nil {
		return 0
	}
	discriminant := r.ReadUint8()
	if r.err != nil {
		return 0
	}

	switch discriminant {
	case 0xff:
		v := r.ReadUint64()
		if r.err == nil && v < 0x100000000 {
			r.err = ErrNonCanonicalVarInt
		}
		return v
	case 0xfe:
		v := uint64(r.ReadUint32())
		if r.err == nil && v < 0x10000 {
			r.err = ErrNonCanonicalVarInt
		}
		return v
	case 0xfd:
		var buf [2]byte
		r.read(buf[:])
		v := uint64(binary.LittleEndian.Uint16(buf[:]))
		if r.err == nil && v < 0xfd {
			r.err = ErrNonCanonicalVarInt
		}
		return v
	default:
		return uint64(discriminant)
	}
}

// ErrVecTooLarge is returned when a vector's length prefix exceeds MaxVecLen.
var ErrVecTooLarge = errors.New("vector length prefix exceeds maximum")

// ReadVec reads a size-prefixed vector, calling readElem once per element.
func ReadVec[T any](r *Reader, readElem func(*Reader) T) []T {
	n := r.ReadVarInt()
	if r.err != nil {
		return nil
	}
	if n > MaxVecLen {
		r.err = ErrVecTooLarge
		return nil
	}
	out := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		if r.err != nil {
			return out
		}
		out = append(out, readElem(r))
	}
	return out
}

// ReadOption reads the presence flag and, if set, the value.
func ReadOption[T any](r *Reader, readVal func(*Reader) T) *T {
	present := r.ReadBool()
	if r.err != nil || !present {
		return nil
	}
	v := readVal(r)
	return &v
}
