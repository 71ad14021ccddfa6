package movdemux

import "testing"

func TestReaderBigEndianDecode(t *testing.T) {
	buf := []byte{0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01}
	r := newReader(buf)

	v16, err := r.u16()
	if err != nil || v16 != 1 {
		t.Fatalf("u16() = %d, %v; want 1, nil", v16, err)
	}
	v32, err := r.u32()
	if err != nil || v32 != 1<<8 {
		t.Fatalf("u32() = %d, %v; want %d, nil", v32, err, 1<<8)
	}
	v32b, err := r.u32()
	if err != nil || v32b != 1 {
		t.Fatalf("u32() = %d, %v; want 1, nil", v32b, err)
	}
}

func TestReaderU24(t *testing.T) {
	r := newReader([]byte{0x00, 0x00, 0x01})
	v, err := r.u24()
	if err != nil || v != 1 {
		t.Fatalf("u24() = %d, %v; want 1, nil", v, err)
	}
}

func TestReaderFourcc(t *testing.T) {
	r := newReader([]byte("moov"))
	v, err := r.fourcc()
	if err != nil || v != "moov" {
		t.Fatalf("fourcc() = %q, %v; want moov, nil", v, err)
	}
}

func TestReaderFixedPoint(t *testing.T) {
	// 1.5 in 16.16 fixed point is 0x00018000.
	r := newReader([]byte{0x00, 0x01, 0x80, 0x00})
	v, err := r.fixed16_16()
	if err != nil || v != 1.5 {
		t.Fatalf("fixed16_16() = %v, %v; want 1.5, nil", v, err)
	}

	// 1.5 in 8.8 fixed point is 0x0180.
	r2 := newReader([]byte{0x01, 0x80})
	v2, err := r2.fixed8_8()
	if err != nil || v2 != 1.5 {
		t.Fatalf("fixed8_8() = %v, %v; want 1.5, nil", v2, err)
	}
}

func TestReaderShortReadErrors(t *testing.T) {
	r := newReader([]byte{0x01, 0x02})
	if _, err := r.u32(); err == nil {
		t.Fatal("u32() on a 2-byte buffer should fail")
	}
}

func TestReaderSubReaderScopesIndependently(t *testing.T) {
	r := newReader([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})
	sub, err := r.subReader(3)
	if err != nil {
		t.Fatalf("subReader: %v", err)
	}
	if sub.remaining() != 3 {
		t.Fatalf("sub.remaining() = %d, want 3", sub.remaining())
	}
	if r.remaining() != 2 {
		t.Fatalf("r.remaining() = %d, want 2 after carving out subReader", r.remaining())
	}
	b, err := sub.bytes(3)
	if err != nil || b[0] != 0xAA || b[2] != 0xCC {
		t.Fatalf("sub.bytes(3) = %v, %v", b, err)
	}
}
