package movdemux

import (
	"encoding/binary"
	"testing"
)

// buildBox assembles one ISO-BMFF box with a short 32-bit size header.
// Shared by every _test.go file in this package that needs a synthetic
// box tree.
func buildBox(typ string, payload []byte) []byte {
	out := make([]byte, 0, 8+len(payload))
	out = binary.BigEndian.AppendUint32(out, uint32(8+len(payload)))
	out = append(out, []byte(typ)...)
	out = append(out, payload...)
	return out
}

func discardWarning(Warning) {}

func TestParseOneBoxShortHeader(t *testing.T) {
	buf := buildBox("free", []byte{0x01, 0x02, 0x03})
	r := newReader(buf)
	log := newDefaultLogger(false)
	b, err := parseOneBox(r, log, discardWarning)
	if err != nil {
		t.Fatalf("parseOneBox: %v", err)
	}
	if b.Type != "free" || b.HeaderLen != 8 || len(b.Payload) != 3 {
		t.Fatalf("got %+v", b)
	}
}

func TestParseOneBoxLargeSize(t *testing.T) {
	payload := make([]byte, 10)
	out := make([]byte, 0)
	out = binary.BigEndian.AppendUint32(out, 1) // smallSize == 1 means largesize follows
	out = append(out, []byte("skip")...)
	out = binary.BigEndian.AppendUint64(out, uint64(16+len(payload)))
	out = append(out, payload...)

	r := newReader(out)
	b, err := parseOneBox(r, newDefaultLogger(false), discardWarning)
	if err != nil {
		t.Fatalf("parseOneBox: %v", err)
	}
	if b.HeaderLen != 16 || len(b.Payload) != 10 {
		t.Fatalf("got HeaderLen=%d payload=%d, want 16, 10", b.HeaderLen, len(b.Payload))
	}
}

func TestParseOneBoxUuidExtendedType(t *testing.T) {
	ext := make([]byte, 16)
	for i := range ext {
		ext[i] = byte(i)
	}
	payload := append(append([]byte{}, ext...), []byte{0xAB, 0xCD}...)
	out := buildBox("uuid", payload)

	b, err := parseOneBox(newReader(out), newDefaultLogger(false), discardWarning)
	if err != nil {
		t.Fatalf("parseOneBox: %v", err)
	}
	if b.HeaderLen != 8+16 || len(b.Payload) != 2 {
		t.Fatalf("got HeaderLen=%d payload=%d, want 24, 2", b.HeaderLen, len(b.Payload))
	}
}

func TestParseOneBoxSizeZeroExtendsToEOF(t *testing.T) {
	out := make([]byte, 0)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = append(out, []byte("mdat")...)
	out = append(out, []byte{1, 2, 3, 4, 5}...)

	b, err := parseOneBox(newReader(out), newDefaultLogger(false), discardWarning)
	if err != nil {
		t.Fatalf("parseOneBox: %v", err)
	}
	if len(b.Payload) != 5 {
		t.Fatalf("payload len = %d, want 5 (rest of buffer)", len(b.Payload))
	}
}

func TestParseOneBoxPayloadExceedsBufferIsTruncatedWithWarning(t *testing.T) {
	out := make([]byte, 0)
	out = binary.BigEndian.AppendUint32(out, 100) // claims 100 bytes but buffer is much shorter
	out = append(out, []byte("free")...)
	out = append(out, []byte{1, 2, 3}...)

	var warns []Warning
	b, err := parseOneBox(newReader(out), newDefaultLogger(false), func(w Warning) { warns = append(warns, w) })
	if err != nil {
		t.Fatalf("parseOneBox: %v", err)
	}
	if len(warns) != 1 || warns[0].Kind != WarnBoxExceedsParent {
		t.Fatalf("warnings = %+v, want one WarnBoxExceedsParent", warns)
	}
	if len(b.Payload) != 3 {
		t.Fatalf("payload len = %d, want truncated to 3", len(b.Payload))
	}
}

func TestParseBoxesRecursesIntoContainers(t *testing.T) {
	mdhd := buildBox("mdhd", make([]byte, 20))
	mdia := buildBox("mdia", mdhd)
	trak := buildBox("trak", mdia)
	moov := buildBox("moov", trak)

	top := parseTopLevel(moov, newDefaultLogger(false), discardWarning)
	if len(top) != 1 || top[0].Type != "moov" {
		t.Fatalf("top-level = %+v", top)
	}
	got := find(top, "mdhd")
	if got == nil {
		t.Fatal("find(top, mdhd) = nil, want the nested mdhd box")
	}
}

func TestFindAllCollectsEveryMatch(t *testing.T) {
	trak1 := buildBox("trak", buildBox("mdhd", nil))
	trak2 := buildBox("trak", buildBox("mdhd", nil))
	moov := buildBox("moov", append(append([]byte{}, trak1...), trak2...))

	top := parseTopLevel(moov, newDefaultLogger(false), discardWarning)
	traks := findAll(top, "trak")
	if len(traks) != 2 {
		t.Fatalf("findAll(trak) = %d boxes, want 2", len(traks))
	}
}
