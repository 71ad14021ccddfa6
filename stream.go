package movdemux

import (
	"math"

	"github.com/sirupsen/logrus"
)

// decodeMdhd decodes a Media Header Box into its time scale and
// duration, handling both the 32-bit (version 0) and 64-bit
// (version 1) forms, per spec.md §3's MovieHeader note and §4.D.
//
// Grounded on the teacher's Mp4MediaHeaderBox.DecodeHeader
// (core/box.go:966-1045).
func decodeMdhd(log *logrus.Logger, b *box) (timeScale uint32, duration uint64, err error) {
	log.Infof("decode mdhd box, payload_len=%d", len(b.Payload))
	r := newReader(b.Payload)
	version, _, err := readFullBoxHeader(r)
	if err != nil {
		return 0, 0, err
	}

	if version == 1 {
		if _, err = r.u64(); err != nil { // creation_time
			return 0, 0, err
		}
		if _, err = r.u64(); err != nil { // modification_time
			return 0, 0, err
		}
		if timeScale, err = r.u32(); err != nil {
			return 0, 0, err
		}
		if duration, err = r.u64(); err != nil {
			return 0, 0, err
		}
		log.Tracef("mdhd decoded: version=1 time_scale=%d duration=%d", timeScale, duration)
		return timeScale, duration, nil
	}

	if _, err = r.u32(); err != nil { // creation_time
		return 0, 0, err
	}
	if _, err = r.u32(); err != nil { // modification_time
		return 0, 0, err
	}
	if timeScale, err = r.u32(); err != nil {
		return 0, 0, err
	}
	dur32, err := r.u32()
	if err != nil {
		return 0, 0, err
	}
	log.Tracef("mdhd decoded: version=0 time_scale=%d duration=%d", timeScale, dur32)
	return timeScale, uint64(dur32), nil
}

// decodeHdlr decodes a Handler Reference Box and classifies the
// track by its component subtype: 'vide' -> video, 'soun' -> audio,
// anything else means the caller should skip the track, per spec.md
// §4.D.
//
// Grounded on the teacher's Mp4HandlerReferenceBox.DecodeHeader
// (core/box.go:1061-1094).
func decodeHdlr(log *logrus.Logger, b *box) (kind StreamKind, ok bool, err error) {
	log.Infof("decode hdlr box, payload_len=%d", len(b.Payload))
	r := newReader(b.Payload)
	if _, _, err = readFullBoxHeader(r); err != nil {
		return 0, false, err
	}
	if err = r.skip(4); err != nil { // pre_defined
		return 0, false, err
	}
	handlerType, err := r.fourcc()
	if err != nil {
		return 0, false, err
	}
	switch handlerType {
	case "vide":
		log.Tracef("hdlr decoded: handler_type=vide")
		return KindVideo, true, nil
	case "soun":
		log.Tracef("hdlr decoded: handler_type=soun")
		return KindAudio, true, nil
	default:
		log.Tracef("hdlr decoded: handler_type=%s, skipping track", handlerType)
		return 0, false, nil
	}
}

// decodedEntry is the sample-description entry fields this demuxer
// extracts; it covers both the video and audio field groups of
// spec.md §4.D, letting the caller pick by StreamKind.
type decodedEntry struct {
	CodecFourCC string
	Width       uint32
	Height      uint32
	Channels    uint16
	BitDepth    uint16
	SampleRate  float64
	ExtraData   []byte
}

// decodeStsd decodes a Sample Description Box's first entry. Only the
// first entry is decoded into a StreamContext, matching spec.md
// §4.D's "for the first entry" instruction; subsequent entries (rare
// in practice — alternate sample descriptions) are skipped.
//
// Grounded on the teacher's Mp4SampleDescritionBox.DecodeHeader plus
// Mp4VisualSampleEntry.DecodeHeader / Mp4AudioSampleEntry.DecodeHeader
// (core/box.go:1787-1822, 1302-1354, 1402-1430).
func decodeStsd(log *logrus.Logger, b *box, kind StreamKind) (*decodedEntry, []Warning) {
	log.Infof("decode stsd box, payload_len=%d, kind=%v", len(b.Payload), kind)
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsd header", BoxType: "stsd"}}
	}
	count, err := r.u32()
	if err != nil || count == 0 {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "stsd has no sample description entries", BoxType: "stsd"}}
	}

	entrySize, err := r.u32()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsd entry size", BoxType: "stsd"}}
	}
	codec, err := r.fourcc()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsd entry codec", BoxType: "stsd"}}
	}
	if err := r.skip(6); err != nil { // reserved
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsd entry reserved", BoxType: "stsd"}}
	}
	if _, err := r.u16(); err != nil { // data_reference_index
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsd entry data ref index", BoxType: "stsd"}}
	}

	// entrySize includes the 8-byte SampleEntry box header (size+type)
	// that parseOneBox would normally consume; here stsd is a leaf so
	// we account for it ourselves when computing the extra-data tail.
	entryBodyRemaining := int(entrySize) - 8 - 6 - 2

	entry := &decodedEntry{CodecFourCC: codec}

	switch kind {
	case KindVideo:
		if err := r.skip(2 + 2 + 12); err != nil { // pre_defined, reserved, pre_defined[3]
			return entry, []Warning{{Kind: WarnTruncatedTable, Message: "truncated avc1-style visual entry", BoxType: codec}}
		}
		width, err := r.u16()
		if err != nil {
			return entry, []Warning{{Kind: WarnTruncatedTable, Message: "truncated visual entry width", BoxType: codec}}
		}
		height, err := r.u16()
		if err != nil {
			return entry, []Warning{{Kind: WarnTruncatedTable, Message: "truncated visual entry height", BoxType: codec}}
		}
		entry.Width, entry.Height = uint32(width), uint32(height)
		if err := r.skip(4 + 4 + 4); err != nil { // horiz/vert resolution, reserved
			return entry, nil
		}
		if _, err := r.u16(); err != nil { // frame_count
			return entry, nil
		}
		if _, err := r.bytes(32); err != nil { // Pascal-length compressor name
			return entry, nil
		}
		if _, err := r.u16(); err != nil { // depth
			return entry, nil
		}
		if _, err := r.i16(); err != nil { // pre_defined
			return entry, nil
		}
		entryBodyRemaining -= 2 + 2 + 12 + 2 + 2 + 4 + 4 + 4 + 2 + 32 + 2 + 2
	case KindAudio:
		channels, err := r.u16()
		if err != nil {
			return entry, []Warning{{Kind: WarnTruncatedTable, Message: "truncated audio entry channels", BoxType: codec}}
		}
		bitDepth, err := r.u16()
		if err != nil {
			return entry, []Warning{{Kind: WarnTruncatedTable, Message: "truncated audio entry bit depth", BoxType: codec}}
		}
		if _, err := r.i16(); err != nil { // compression_id
			return entry, nil
		}
		if _, err := r.u16(); err != nil { // packet_size
			return entry, nil
		}
		sampleRate, err := r.fixed16_16()
		if err != nil {
			return entry, nil
		}
		entry.Channels, entry.BitDepth, entry.SampleRate = channels, bitDepth, sampleRate
		entryBodyRemaining -= 2 + 2 + 2 + 2 + 4
	}

	if entryBodyRemaining > 0 {
		extra, err := r.bytes(entryBodyRemaining)
		if err == nil {
			entry.ExtraData = extra
		}
	}

	log.Tracef("stsd entry decoded: codec=%s width=%d height=%d channels=%d bit_depth=%d extra_data_len=%d",
		entry.CodecFourCC, entry.Width, entry.Height, entry.Channels, entry.BitDepth, len(entry.ExtraData))
	return entry, nil
}

// frameRate derives the constant/average frame rate of a track from
// its decoded stts entries, per spec.md §4.D's frame-rate derivation.
//
// Grounded on the teacher's lack of an equivalent helper (the
// teacher never derives frame rate) — this is new code in the
// teacher's numeric style, cross-checked against
// other_examples/bluenviron-mediamtx__sample.go's duration bookkeeping.
func frameRate(entries []sttsEntry, timeScale uint32) (fr float32, isConstant bool, avg float32) {
	if len(entries) == 0 || timeScale == 0 {
		return 0, false, 0
	}

	var totalSamples uint64
	var totalTicks uint64
	constant := true
	firstDelta := entries[0].sampleDelta
	for _, e := range entries {
		if e.sampleDelta != firstDelta {
			constant = false
		}
		totalSamples += uint64(e.sampleCount)
		totalTicks += uint64(e.sampleCount) * uint64(e.sampleDelta)
	}

	if totalTicks == 0 {
		return 0, false, 0
	}

	avgVal := float64(totalSamples) * float64(timeScale) / float64(totalTicks)
	avg = float32(round3(avgVal))

	if constant && firstDelta > 0 {
		fr = float32(round3(float64(timeScale) / float64(firstDelta)))
		isConstant = true
	}
	return fr, isConstant, avg
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
