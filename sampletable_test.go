package movdemux

import (
	"encoding/binary"
	"testing"
)

func fullBoxHeader(flags uint32) []byte {
	out := []byte{0} // version
	f := make([]byte, 4)
	binary.BigEndian.PutUint32(f, flags)
	return append(out, f[1:]...) // 24-bit flags
}

func TestDecodeStszUniformSize(t *testing.T) {
	payload := append(fullBoxHeader(0), binary.BigEndian.AppendUint32(nil, 512)...) // uniform size
	payload = append(payload, binary.BigEndian.AppendUint32(nil, 3)...)             // count
	sizes, warns := decodeStsz(&box{Type: "stsz", Payload: payload})
	if len(warns) != 0 {
		t.Fatalf("warns = %+v, want none", warns)
	}
	if len(sizes) != 3 || sizes[0] != 512 || sizes[2] != 512 {
		t.Fatalf("sizes = %v, want [512 512 512]", sizes)
	}
}

func TestDecodeStszPerSampleSizes(t *testing.T) {
	payload := append(fullBoxHeader(0), binary.BigEndian.AppendUint32(nil, 0)...) // uniform size 0 -> per-sample follows
	payload = append(payload, binary.BigEndian.AppendUint32(nil, 2)...)          // count
	payload = append(payload, binary.BigEndian.AppendUint32(nil, 100)...)
	payload = append(payload, binary.BigEndian.AppendUint32(nil, 200)...)

	sizes, warns := decodeStsz(&box{Type: "stsz", Payload: payload})
	if len(warns) != 0 {
		t.Fatalf("warns = %+v, want none", warns)
	}
	if len(sizes) != 2 || sizes[0] != 100 || sizes[1] != 200 {
		t.Fatalf("sizes = %v, want [100 200]", sizes)
	}
}

func TestDecodeChunkOffsetsStcoVsCo64(t *testing.T) {
	stcoPayload := append(fullBoxHeader(0), binary.BigEndian.AppendUint32(nil, 1)...)
	stcoPayload = append(stcoPayload, binary.BigEndian.AppendUint32(nil, 4096)...)
	offsets, _ := decodeChunkOffsets(&box{Type: "stco", Payload: stcoPayload})
	if len(offsets) != 1 || offsets[0] != 4096 {
		t.Fatalf("stco offsets = %v, want [4096]", offsets)
	}

	var big uint64 = 1<<32 + 10 // beyond 4GiB, exercises the 64-bit path
	co64Payload := append(fullBoxHeader(0), binary.BigEndian.AppendUint32(nil, 1)...)
	co64Payload = append(co64Payload, binary.BigEndian.AppendUint64(nil, big)...)
	offsets64, _ := decodeChunkOffsets(&box{Type: "co64", Payload: co64Payload})
	if len(offsets64) != 1 || offsets64[0] != big {
		t.Fatalf("co64 offsets = %v, want [%d]", offsets64, big)
	}
}

func TestTicksToMicrosRoundsHalfToEven(t *testing.T) {
	// 1 tick at timescale 4 is 250000us exactly, no rounding ambiguity.
	if got := ticksToMicros(1, 4); got != 250000 {
		t.Fatalf("ticksToMicros(1,4) = %d, want 250000", got)
	}
	// 3 ticks at timescale 2 is 1500000us exactly.
	if got := ticksToMicros(3, 2); got != 1500000 {
		t.Fatalf("ticksToMicros(3,2) = %d, want 1500000", got)
	}
	// 1 tick at timescale 2_000_000 is 0.5us and 3 ticks is 1.5us: both
	// halves round to the even neighbour.
	if got := ticksToMicros(1, 2_000_000); got != 0 {
		t.Fatalf("ticksToMicros(1,2000000) = %d, want 0", got)
	}
	if got := ticksToMicros(3, 2_000_000); got != 2 {
		t.Fatalf("ticksToMicros(3,2000000) = %d, want 2", got)
	}
	// timescale 0 must not panic or divide by zero.
	if got := ticksToMicros(10, 0); got != 0 {
		t.Fatalf("ticksToMicros(10,0) = %d, want 0", got)
	}
}

func TestSampleOffsetsWalksChunksInOrder(t *testing.T) {
	st := &sampleTable{
		sizes:         []uint32{10, 20, 30, 5},
		chunkOffsets:  []uint64{1000, 2000},
		sampleToChunk: []stscEntry{{firstChunk: 1, samplesPerChunk: 3, descIndex: 1}, {firstChunk: 2, samplesPerChunk: 1, descIndex: 1}},
	}
	offsets, warns := sampleOffsets(st, 0)
	if len(warns) != 0 {
		t.Fatalf("warns = %+v, want none", warns)
	}
	want := []uint64{1000, 1010, 1030, 2000}
	if len(offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestSampleOffsetsWarnsWhenChunkExceedsMdat(t *testing.T) {
	st := &sampleTable{
		sizes:         []uint32{10, 20},
		chunkOffsets:  []uint64{1000},
		sampleToChunk: []stscEntry{{firstChunk: 1, samplesPerChunk: 2, descIndex: 1}},
	}
	// Chunk spans [1000, 1030) but mdat ends at 1020: the chunk's tail
	// falls outside mdat, so this must warn while still keeping both
	// samples' offsets.
	offsets, warns := sampleOffsets(st, 1020)
	if len(offsets) != 2 {
		t.Fatalf("offsets = %v, want 2 samples kept despite the warning", offsets)
	}
	found := false
	for _, w := range warns {
		if w.Kind == WarnOffsetBeyondMdat {
			found = true
		}
	}
	if !found {
		t.Fatalf("warns = %+v, want a WarnOffsetBeyondMdat", warns)
	}
}

func TestBuildSamplesKeyframesFromStss(t *testing.T) {
	st := &sampleTable{
		sizes:         []uint32{10, 10, 10},
		chunkOffsets:  []uint64{0},
		sampleToChunk: []stscEntry{{firstChunk: 1, samplesPerChunk: 3, descIndex: 1}},
		timeToSample:  []sttsEntry{{sampleCount: 3, sampleDelta: 1000}},
		syncSamples:   []uint32{1}, // 1-based: only the first sample is a sync sample
	}
	samples, warns := buildSamples(7, st, 1000, 0)
	if len(warns) != 0 {
		t.Fatalf("warns = %+v, want none", warns)
	}
	if len(samples) != 3 {
		t.Fatalf("len(samples) = %d, want 3", len(samples))
	}
	if !samples[0].Keyframe || samples[1].Keyframe || samples[2].Keyframe {
		t.Fatalf("keyframes = [%v %v %v], want [true false false]", samples[0].Keyframe, samples[1].Keyframe, samples[2].Keyframe)
	}
	if samples[0].TimestampUs != 0 || samples[1].TimestampUs != 1000000 || samples[2].TimestampUs != 2000000 {
		t.Fatalf("timestamps = [%d %d %d]", samples[0].TimestampUs, samples[1].TimestampUs, samples[2].TimestampUs)
	}
	for _, s := range samples {
		if s.StreamID != 7 {
			t.Fatalf("StreamID = %d, want 7", s.StreamID)
		}
	}
}

func TestBuildSamplesWithoutStssEveryoneIsKeyframe(t *testing.T) {
	st := &sampleTable{
		sizes:         []uint32{10, 10},
		chunkOffsets:  []uint64{0},
		sampleToChunk: []stscEntry{{firstChunk: 1, samplesPerChunk: 2, descIndex: 1}},
		timeToSample:  []sttsEntry{{sampleCount: 2, sampleDelta: 500}},
	}
	samples, _ := buildSamples(0, st, 1000, 0)
	for i, s := range samples {
		if !s.Keyframe {
			t.Fatalf("sample %d not a keyframe, want every sample keyframe when stss is absent", i)
		}
	}
}
