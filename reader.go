package movdemux

import "encoding/binary"

// reader is a stateful, bounds-checked cursor over an immutable byte
// range. It never copies the underlying buffer; bytes() and
// subReader() return non-owning views into it, per spec.md §3's
// zero-copy ownership rule.
//
// Grounded on the teacher's Mp4Box.Read/Skip (core/box.go), which
// wraps encoding/binary.Read at every box field; reader centralises
// that into one bounds-checked cursor instead of re-deriving read
// sizes ad hoc per call site.
type reader struct {
	buf []byte
	off int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) pos() int { return r.off }

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) seek(abs int) error {
	if abs < 0 || abs > len(r.buf) {
		return newError(ErrCorruptData, "seek out of range", map[string]any{"pos": abs, "len": len(r.buf)})
	}
	r.off = abs
	return nil
}

func (r *reader) skip(n int) error {
	if n < 0 || r.remaining() < n {
		return newError(ErrCorruptData, "skip beyond buffer", map[string]any{"n": n, "remaining": r.remaining()})
	}
	r.off += n
	return nil
}

func (r *reader) require(n int) error {
	if n < 0 || r.remaining() < n {
		return newError(ErrCorruptData, "short read", map[string]any{"want": n, "remaining": r.remaining()})
	}
	return nil
}

// bytes returns a non-owning slice view of the next n bytes and
// advances the cursor.
func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) peekBytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	return r.buf[r.off : r.off+n], nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

// u24 reads a 3-byte big-endian unsigned integer, used for FullBox
// flags.
func (r *reader) u24() (uint32, error) {
	b, err := r.bytes(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

// fourcc reads a 4-byte ASCII box or codec tag.
func (r *reader) fourcc() (string, error) {
	b, err := r.bytes(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) ascii(n int) (string, error) {
	b, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// fixed16_16 reads a QuickTime 16.16 fixed-point number as a float64.
func (r *reader) fixed16_16() (float64, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return float64(v) / 65536.0, nil
}

// fixed8_8 reads a QuickTime 8.8 fixed-point number as a float64.
func (r *reader) fixed8_8() (float64, error) {
	v, err := r.u16()
	if err != nil {
		return 0, err
	}
	return float64(v) / 256.0, nil
}

// subReader carves out an independent cursor over the next n bytes of
// r, advancing r past them. It is the only way box decoding scopes
// itself to a payload, matching spec.md §4.A's contract.
func (r *reader) subReader(n int) (*reader, error) {
	b, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	return newReader(b), nil
}
