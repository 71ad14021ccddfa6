package movdemux

import "github.com/sirupsen/logrus"

// containerBoxTypes is the set of ISO-BMFF boxes this demuxer
// descends into recursively; everything else is captured as an
// opaque leaf payload. Grounded on the teacher's Discovery switch
// (core/box.go) generalized from its per-type struct dispatch into a
// membership test, since the flat sample-table/stream-parser design
// here classifies boxes by container-vs-leaf rather than by giving
// every box type its own Go struct.
var containerBoxTypes = map[string]bool{
	"moov": true,
	"trak": true,
	"mdia": true,
	"minf": true,
	"stbl": true,
	"udta": true,
	"meta": true,
	"dinf": true,
	"edts": true,
	"mvex": true,
	"moof": true,
	"traf": true,
	"mfra": true,
}

// knownLeafBoxTypes is every non-container box type this demuxer
// understands or deliberately ignores (spec.md §9's edit-list gap
// keeps 'elst' here as an intentionally opaque leaf). A leaf type
// outside this set is still captured as an opaque payload, per
// spec.md §7's "unknown box type (opaque payload)" recoverable case,
// but it raises WarnUnknownBoxType so the deviation is visible.
var knownLeafBoxTypes = map[string]bool{
	"ftyp": true,
	"mvhd": true,
	"tkhd": true,
	"mdhd": true,
	"hdlr": true,
	"vmhd": true,
	"smhd": true,
	"dref": true,
	"stsd": true,
	"stsz": true,
	"stz2": true,
	"stco": true,
	"co64": true,
	"stsc": true,
	"stts": true,
	"stss": true,
	"ctts": true,
	"elst": true,
	"mdat": true,
	"free": true,
	"skip": true,
	"wide": true,
	"uuid": true,
}

// box is the parse artefact of one ISO-BMFF atom: a container with
// children, or a leaf with an opaque payload. Never both.
//
// Grounded on the teacher's Mp4Box (core/box.go:17-39) generalized
// from a per-box-type Go struct hierarchy into one tagged variant, per
// spec.md §9's "model boxes as a tagged variant" design note.
type box struct {
	Type       string
	Size       uint64
	FileOffset uint64
	HeaderLen  int
	Payload    []byte // set when leaf
	Children   []*box // set when container
}

func (b *box) isContainer() bool { return b.Children != nil }

// find performs a pre-order depth-first search for the first child of
// the given type, matching spec.md §4.B's find(tree, type).
func find(nodes []*box, boxType string) *box {
	for _, n := range nodes {
		if n.Type == boxType {
			return n
		}
		if n.isContainer() {
			if got := find(n.Children, boxType); got != nil {
				return got
			}
		}
	}
	return nil
}

// findAll performs a pre-order depth-first search collecting every
// matching box, matching spec.md §4.B's find_all(tree, type).
func findAll(nodes []*box, boxType string) []*box {
	var out []*box
	for _, n := range nodes {
		if n.Type == boxType {
			out = append(out, n)
		}
		if n.isContainer() {
			out = append(out, findAll(n.Children, boxType)...)
		}
	}
	return out
}

// findChild returns the direct (non-recursive) child of the given
// type, used when parsing a fixed box shape like trak/mdia/minf/stbl.
func findChild(nodes []*box, boxType string) *box {
	for _, n := range nodes {
		if n.Type == boxType {
			return n
		}
	}
	return nil
}

// parseBoxes decodes a sibling run of boxes from r until r is
// exhausted (or, at top level, until the caller's buffer ends).
// Malformed children that would cross the parent's end abort that
// container with a warning but let sibling containers continue to
// parse, per spec.md §4.B.
//
// Grounded on the teacher's Mp4Box.DecodeBoxes (core/box.go:199-229).
func parseBoxes(r *reader, log *logrus.Logger, warn func(Warning)) []*box {
	var boxes []*box
	for r.remaining() >= 8 {
		start := r.pos()
		b, err := parseOneBox(r, log, warn)
		if err != nil {
			log.WithError(err).Warn("terminating box run: malformed child header")
			warn(Warning{Kind: WarnBoxExceedsParent, Message: "malformed box header, stopping sibling scan"})
			r.off = start
			break
		}
		boxes = append(boxes, b)
	}
	return boxes
}

// parseOneBox decodes a single box header (with 32/64-bit size and
// uuid extended type handling) and, for container types, its
// children; leaf types keep their payload as an opaque slice.
func parseOneBox(r *reader, log *logrus.Logger, warn func(Warning)) (*box, error) {
	fileOffset := uint64(r.pos())
	headerLen := 8

	smallSize, err := r.u32()
	if err != nil {
		return nil, err
	}
	boxType, err := r.fourcc()
	if err != nil {
		return nil, err
	}

	size := uint64(smallSize)
	if smallSize == 1 {
		largeSize, err := r.u64()
		if err != nil {
			return nil, err
		}
		size = largeSize
		headerLen += 8
	}
	if boxType == "uuid" {
		if _, err := r.bytes(16); err != nil {
			return nil, err
		}
		headerLen += 16
	}

	if smallSize == 0 {
		// Box extends to EOF: treat the remainder of r as its payload.
		size = uint64(headerLen + r.remaining())
	}

	if size < uint64(headerLen) {
		return nil, newError(ErrInvalidBoxSize, "box size smaller than its header", map[string]any{"box_type": boxType, "size": size})
	}
	payloadLen := int(size) - headerLen
	if payloadLen > r.remaining() {
		warn(Warning{Kind: WarnBoxExceedsParent, Message: "box payload exceeds remaining buffer, truncating", BoxType: boxType})
		payloadLen = r.remaining()
		size = uint64(headerLen + payloadLen)
	}

	log.Infof("discovered box type=%s offset=%d size=%d header_len=%d", boxType, fileOffset, size, headerLen)

	b := &box{Type: boxType, Size: size, FileOffset: fileOffset, HeaderLen: headerLen}

	if containerBoxTypes[boxType] {
		sub, err := r.subReader(payloadLen)
		if err != nil {
			return nil, err
		}
		b.Children = parseBoxes(sub, log, warn)
		log.Tracef("box %s decoded, %d children, payload_len=%d", boxType, len(b.Children), payloadLen)
	} else {
		payload, err := r.bytes(payloadLen)
		if err != nil {
			return nil, err
		}
		b.Payload = payload
		log.Tracef("box %s decoded as leaf, payload_len=%d", boxType, payloadLen)
		if !knownLeafBoxTypes[boxType] {
			warn(Warning{Kind: WarnUnknownBoxType, Message: "unrecognised box type, keeping opaque payload", BoxType: boxType})
		}
	}
	return b, nil
}

// parseTopLevel decodes the sequence of top-level boxes in buf.
func parseTopLevel(buf []byte, log *logrus.Logger, warn func(Warning)) []*box {
	return parseBoxes(newReader(buf), log, warn)
}
