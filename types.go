package movdemux

// StreamKind distinguishes video and audio tracks. Replaces any
// inheritance hierarchy the source might use with a plain tag plus
// kind-specific attribute groups on StreamContext, per spec.md §9.
type StreamKind int

const (
	KindVideo StreamKind = iota
	KindAudio
)

func (k StreamKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// FileType is the decoded ftyp box.
type FileType struct {
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

// MovieHeader is the decoded mvhd box (both v0 32-bit and v1 64-bit
// forms normalise to these two fields).
type MovieHeader struct {
	TimeScale uint32
	Duration  uint64
}

// StreamContext describes one decoded track. Exactly one of the
// video/audio field groups is meaningful, selected by Kind.
type StreamContext struct {
	ID             uint32
	Kind           StreamKind
	CodecFourCC    string
	CodecCanonical string
	TimeScale      uint32
	Duration       uint64
	ExtraData      []byte

	// Video fields (Kind == KindVideo).
	Width  uint32
	Height uint32

	// Audio fields (Kind == KindAudio).
	SampleRate float64
	Channels   uint16
	BitDepth   uint16

	// Derived statistics (spec.md §4.D / §4.F.9).
	FrameRate     float32 // zero value means "omitted"; see IsConstantFPS
	IsConstantFPS bool
	AvgFrameRate  float32
	BitRate       uint32
	AvgBitRate    uint32
}

// sampleTable is the intermediate, per-track decode of the sample
// tables, before it is flattened into the global Sample list.
type sampleTable struct {
	sizes         []uint32
	chunkOffsets  []uint64
	sampleToChunk []stscEntry
	timeToSample  []sttsEntry
	syncSamples   []uint32 // 1-based; nil means every sample is a keyframe
}

type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
	descIndex       uint32
}

type sttsEntry struct {
	sampleCount uint32
	sampleDelta uint32
}

// Sample is one flat entry of the merged, time-ordered sample index.
type Sample struct {
	StreamID    uint32
	FileOffset  uint64
	Size        uint32
	TimestampUs int64
	DurationUs  uint32
	Keyframe    bool
}

// Info is the read-only snapshot returned by Demuxer.Info().
type Info struct {
	Duration    uint64
	TimeScale   uint32
	Streams     []StreamContext
	SampleCount int
	FileType    *FileType
}

// FrameRateInfo is the derived projection returned by
// Demuxer.FrameRateInfo for one stream.
type FrameRateInfo struct {
	StreamID     uint32
	FrameRate    float32
	IsConstant   bool
	AvgFrameRate float32
}

// BitRateInfo is the derived projection returned by
// Demuxer.BitRateInfo for one stream.
type BitRateInfo struct {
	StreamID   uint32
	BitRate    uint32
	AvgBitRate uint32
}

// DecoderSample is the downstream platform-decoder contract described
// in spec.md §6: a Sample joined with its owning stream's codec
// configuration and a zero-copy view of its encoded bytes.
type DecoderSample struct {
	Kind           StreamKind
	CodecCanonical string
	ExtraData      []byte
	TimestampUs    int64
	DurationUs     uint32
	Keyframe       bool
	Data           []byte
}

// Options configures Open, matching spec.md §6's { enable_video,
// enable_audio, debug } options struct exactly; no other
// configuration surface exists in the core, per spec.md §6's "no CLI,
// env vars, or persisted state".
type Options struct {
	EnableVideo bool
	EnableAudio bool
	Debug       bool
}

// DefaultOptions matches spec.md §6's defaults (both kinds enabled,
// debug off).
func DefaultOptions() Options {
	return Options{EnableVideo: true, EnableAudio: true, Debug: false}
}
