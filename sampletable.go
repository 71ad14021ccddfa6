package movdemux

import (
	"math"

	"github.com/sirupsen/logrus"
)

// decodeStsz decodes a Sample Size Box (stsz) or Compact Sample Size
// Box (stz2) into a flat per-sample size list.
//
// Grounded on the teacher's Mp4SampleSizeBox.DecodeHeader
// (core/box.go:2127-2156): uniform_size==0 means per-sample sizes
// follow; otherwise every sample gets the uniform size, per spec.md
// §4.C's stsz bullet.
func decodeStsz(b *box) ([]uint32, []Warning) {
	var warns []Warning
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsz header", BoxType: b.Type}}
	}

	if b.Type == "stz2" {
		if err := r.skip(3); err != nil { // reserved(24)
			return nil, append(warns, Warning{Kind: WarnTruncatedTable, Message: "truncated stz2", BoxType: "stz2"})
		}
		fieldSize, err := r.u8()
		if err != nil {
			return nil, append(warns, Warning{Kind: WarnTruncatedTable, Message: "truncated stz2 field size", BoxType: "stz2"})
		}
		count, err := r.u32()
		if err != nil {
			return nil, append(warns, Warning{Kind: WarnTruncatedTable, Message: "truncated stz2 count", BoxType: "stz2"})
		}
		return decodeStz2Entries(r, fieldSize, count)
	}

	uniform, err := r.u32()
	if err != nil {
		return nil, append(warns, Warning{Kind: WarnTruncatedTable, Message: "truncated stsz uniform size", BoxType: "stsz"})
	}
	count, err := r.u32()
	if err != nil {
		return nil, append(warns, Warning{Kind: WarnTruncatedTable, Message: "truncated stsz count", BoxType: "stsz"})
	}

	if uniform != 0 {
		sizes := make([]uint32, count)
		for i := range sizes {
			sizes[i] = uniform
		}
		return sizes, nil
	}

	sizes := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		sz, err := r.u32()
		if err != nil {
			warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stsz truncated before declared count", BoxType: "stsz"})
			break
		}
		sizes = append(sizes, sz)
	}
	return sizes, warns
}

func decodeStz2Entries(r *reader, fieldSize uint8, count uint32) ([]uint32, []Warning) {
	sizes := make([]uint32, 0, count)
	var warns []Warning
	switch fieldSize {
	case 16:
		for i := uint32(0); i < count; i++ {
			v, err := r.u16()
			if err != nil {
				warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stz2 truncated", BoxType: "stz2"})
				break
			}
			sizes = append(sizes, uint32(v))
		}
	case 8:
		for i := uint32(0); i < count; i++ {
			v, err := r.u8()
			if err != nil {
				warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stz2 truncated", BoxType: "stz2"})
				break
			}
			sizes = append(sizes, uint32(v))
		}
	case 4:
		for i := uint32(0); i < count; i += 2 {
			v, err := r.u8()
			if err != nil {
				warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stz2 truncated", BoxType: "stz2"})
				break
			}
			sizes = append(sizes, uint32(v>>4))
			if i+1 < count {
				sizes = append(sizes, uint32(v&0x0f))
			}
		}
	default:
		warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "unsupported stz2 field size", BoxType: "stz2"})
	}
	return sizes, warns
}

// decodeChunkOffsets decodes a Chunk Offset Box (stco, 32-bit) or
// Chunk Large Offset Box (co64, 64-bit), per spec.md §4.C's
// stco/co64 bullet.
//
// Grounded on the teacher's Mp4ChunkOffsetBox.DecodeHeader
// (core/box.go:2184-2206); co64 is the same shape with a wider entry.
func decodeChunkOffsets(b *box) ([]uint64, []Warning) {
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated chunk offset header", BoxType: b.Type}}
	}
	count, err := r.u32()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated chunk offset count", BoxType: b.Type}}
	}

	offsets := make([]uint64, 0, count)
	var warns []Warning
	for i := uint32(0); i < count; i++ {
		if b.Type == "co64" {
			v, err := r.u64()
			if err != nil {
				warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "co64 truncated before declared count", BoxType: "co64"})
				break
			}
			offsets = append(offsets, v)
		} else {
			v, err := r.u32()
			if err != nil {
				warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stco truncated before declared count", BoxType: "stco"})
				break
			}
			offsets = append(offsets, uint64(v))
		}
	}
	return offsets, warns
}

// decodeStsc decodes a Sample To Chunk Box, per spec.md §4.C's stsc
// bullet.
//
// Grounded on the teacher's Mp4Sample2ChunkBox.DecodeHeader
// (core/box.go:2064-2095).
func decodeStsc(b *box) ([]stscEntry, []Warning) {
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsc header", BoxType: "stsc"}}
	}
	count, err := r.u32()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stsc count", BoxType: "stsc"}}
	}

	entries := make([]stscEntry, 0, count)
	var warns []Warning
	for i := uint32(0); i < count; i++ {
		first, err1 := r.u32()
		spc, err2 := r.u32()
		desc, err3 := r.u32()
		if err1 != nil || err2 != nil || err3 != nil {
			warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stsc truncated before declared count", BoxType: "stsc"})
			break
		}
		entries = append(entries, stscEntry{firstChunk: first, samplesPerChunk: spc, descIndex: desc})
	}
	return entries, warns
}

// decodeStts decodes a Decoding Time to Sample Box, per spec.md
// §4.C's stts bullet.
//
// Grounded on the teacher's Mp4DecodingTime2SampleBox.DecodeHeader
// (core/box.go:1875-1902).
func decodeStts(b *box) ([]sttsEntry, []Warning) {
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stts header", BoxType: "stts"}}
	}
	count, err := r.u32()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stts count", BoxType: "stts"}}
	}

	entries := make([]sttsEntry, 0, count)
	var warns []Warning
	for i := uint32(0); i < count; i++ {
		sc, err1 := r.u32()
		delta, err2 := r.u32()
		if err1 != nil || err2 != nil {
			warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stts truncated before declared count", BoxType: "stts"})
			break
		}
		entries = append(entries, sttsEntry{sampleCount: sc, sampleDelta: delta})
	}
	return entries, warns
}

// decodeStss decodes a Sync Sample Box, per spec.md §4.C's stss
// bullet. Indices are 1-based and kept that way — spec.md §9's open
// question says implementers must not silently renormalise them.
//
// Grounded on the teacher's Mp4SyncSampleBox.DecodeHeader
// (core/box.go:2005-2027).
func decodeStss(b *box) ([]uint32, []Warning) {
	r := newReader(b.Payload)
	if _, _, err := readFullBoxHeader(r); err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stss header", BoxType: "stss"}}
	}
	count, err := r.u32()
	if err != nil {
		return nil, []Warning{{Kind: WarnTruncatedTable, Message: "truncated stss count", BoxType: "stss"}}
	}

	indices := make([]uint32, 0, count)
	var warns []Warning
	for i := uint32(0); i < count; i++ {
		idx, err := r.u32()
		if err != nil {
			warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stss truncated before declared count", BoxType: "stss"})
			break
		}
		indices = append(indices, idx)
	}
	return indices, warns
}

// decodeSampleTable decodes every sample-table sub-box found under a
// trak's stbl box set.
//
// Grounded on the teacher's per-box DecodeHeader Infof/Tracef pairs
// (core/box.go:2057-2269); this aggregator logs one Tracef per
// sub-table instead of duplicating that logging inside each of
// decodeStsz/decodeChunkOffsets/decodeStsc/decodeStts/decodeStss,
// which stay logger-free since they're exercised directly by
// sampletable_test.go.
func decodeSampleTable(log *logrus.Logger, stbl *box) (*sampleTable, []Warning) {
	var warns []Warning
	st := &sampleTable{}
	log.Infof("decode stbl box, %d children", len(stbl.Children))

	if b := findChild(stbl.Children, "stsz"); b != nil {
		sizes, w := decodeStsz(b)
		st.sizes = sizes
		warns = append(warns, w...)
	} else if b := findChild(stbl.Children, "stz2"); b != nil {
		sizes, w := decodeStsz(b)
		st.sizes = sizes
		warns = append(warns, w...)
	}
	log.Tracef("stsz/stz2 decoded: %d sample sizes", len(st.sizes))

	if b := findChild(stbl.Children, "co64"); b != nil {
		offsets, w := decodeChunkOffsets(b)
		st.chunkOffsets = offsets
		warns = append(warns, w...)
	} else if b := findChild(stbl.Children, "stco"); b != nil {
		offsets, w := decodeChunkOffsets(b)
		st.chunkOffsets = offsets
		warns = append(warns, w...)
	}
	log.Tracef("stco/co64 decoded: %d chunk offsets", len(st.chunkOffsets))

	if b := findChild(stbl.Children, "stsc"); b != nil {
		entries, w := decodeStsc(b)
		st.sampleToChunk = entries
		warns = append(warns, w...)
	}
	log.Tracef("stsc decoded: %d entries", len(st.sampleToChunk))

	if b := findChild(stbl.Children, "stts"); b != nil {
		entries, w := decodeStts(b)
		st.timeToSample = entries
		warns = append(warns, w...)
	}
	log.Tracef("stts decoded: %d entries", len(st.timeToSample))

	if b := findChild(stbl.Children, "stss"); b != nil {
		indices, w := decodeStss(b)
		st.syncSamples = indices
		warns = append(warns, w...)
	}
	log.Tracef("stss decoded: %d sync samples (absent means every sample is a keyframe)", len(st.syncSamples))

	return st, warns
}

// sampleOffsets expands stsc into a per-sample byte offset list by
// walking chunks in order and accumulating sizes within each chunk.
// This is the delicate part spec.md §4.C calls out explicitly.
//
// mdatEnd, when nonzero, is the first byte past the top-level mdat
// payload; a chunk whose base offset plus its total size crosses it
// is kept (spec.md §4.C's edge case: "warn but keep samples") rather
// than trimmed.
func sampleOffsets(st *sampleTable, mdatEnd uint64) ([]uint64, []Warning) {
	var warns []Warning
	n := len(st.sizes)
	offsets := make([]uint64, 0, n)

	if len(st.sampleToChunk) == 0 || len(st.chunkOffsets) == 0 {
		return offsets, warns
	}

	sampleIdx := 0
	entryIdx := 0
	for chunk := uint32(1); sampleIdx < n; chunk++ {
		chunkPos := int(chunk - 1)
		if chunkPos >= len(st.chunkOffsets) {
			warns = append(warns, Warning{Kind: WarnTruncatedTable, Message: "stsc implies more chunks than stco/co64 has offsets"})
			break
		}

		// Advance the stsc entry pointer while the next entry's
		// first_chunk has been reached.
		for entryIdx+1 < len(st.sampleToChunk) && chunk >= st.sampleToChunk[entryIdx+1].firstChunk {
			entryIdx++
		}
		samplesInChunk := st.sampleToChunk[entryIdx].samplesPerChunk

		base := st.chunkOffsets[chunkPos]
		var within uint64
		for k := uint32(0); k < samplesInChunk; k++ {
			if sampleIdx >= n {
				warns = append(warns, Warning{Kind: WarnInconsistentSampleCount, Message: "stsc implies more samples than stsz has sizes"})
				break
			}
			offsets = append(offsets, base+within)
			within += uint64(st.sizes[sampleIdx])
			sampleIdx++
		}

		if mdatEnd != 0 && base+within > mdatEnd {
			warns = append(warns, Warning{Kind: WarnOffsetBeyondMdat, Message: "chunk offset plus chunk size exceeds mdat, keeping samples anyway"})
		}
	}

	return offsets, warns
}

// buildSamples flattens a decoded sampleTable into the ordered
// per-track Sample list, converting ticks to microseconds via
// round(ticks * 1e6 / timeScale) per spec.md §4.C step 3 and §9's
// "round half to even consistently" numeric-semantics note.
func buildSamples(streamID uint32, st *sampleTable, timeScale uint32, mdatEnd uint64) ([]Sample, []Warning) {
	var warns []Warning

	offsets, w := sampleOffsets(st, mdatEnd)
	warns = append(warns, w...)

	n := len(st.sizes)
	if len(offsets) < n {
		warns = append(warns, Warning{Kind: WarnInconsistentSampleCount, Message: "trimming sample count to the shortest decoded table"})
		n = len(offsets)
	}

	syncSet := make(map[uint32]bool, len(st.syncSamples))
	for _, idx := range st.syncSamples {
		syncSet[idx] = true
	}
	hasStss := len(st.syncSamples) > 0

	samples := make([]Sample, 0, n)

	entryIdx := 0
	remainingInEntry := uint32(0)
	var tickCursor int64
	if len(st.timeToSample) > 0 {
		remainingInEntry = st.timeToSample[0].sampleCount
	}

	for i := 0; i < n; i++ {
		var delta uint32
		if entryIdx < len(st.timeToSample) {
			delta = st.timeToSample[entryIdx].sampleDelta
		}

		tsUs := ticksToMicros(tickCursor, timeScale)
		durUs := ticksToMicros(int64(delta), timeScale)

		keyframe := true
		if hasStss {
			keyframe = syncSet[uint32(i+1)] // stss indices are 1-based.
		}

		samples = append(samples, Sample{
			StreamID:    streamID,
			FileOffset:  offsets[i],
			Size:        st.sizes[i],
			TimestampUs: tsUs,
			DurationUs:  uint32(durUs),
			Keyframe:    keyframe,
		})

		tickCursor += int64(delta)
		if remainingInEntry > 0 {
			remainingInEntry--
		}
		if remainingInEntry == 0 {
			entryIdx++
			if entryIdx < len(st.timeToSample) {
				remainingInEntry = st.timeToSample[entryIdx].sampleCount
			}
		}
	}

	return samples, warns
}

// ticksToMicros converts a tick count at the given time scale to
// microseconds, rounding half-to-even as spec.md §9 requires so that
// timestamp_us and duration_us round consistently.
func ticksToMicros(ticks int64, timeScale uint32) int64 {
	if timeScale == 0 {
		return 0
	}
	return int64(math.RoundToEven(float64(ticks) * 1_000_000 / float64(timeScale)))
}
