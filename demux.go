package movdemux

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

type demuxerState int

const (
	stateUnparsed demuxerState = iota
	stateInitialised
	stateClosed
)

// Demuxer is the facade of spec.md §4.F: it orchestrates the box
// parser, stream parser and sample-table parser into one
// time-ordered sample index and offers a pull-style cursor over it.
//
// Grounded on the teacher's main.go top-level box loop plus
// Mp4MovieBox's Video()/Audio()/NbVideoTracks() track enumeration
// (core/box.go:347-422), generalized from a CLI dumper holding a
// single video and single audio track into a general multi-track
// facade.
type Demuxer struct {
	buf   []byte
	opts  Options
	log   *logrus.Logger
	probe *Probe
	state demuxerState

	fileType  *FileType
	timeScale uint32
	duration  uint64
	streams   []StreamContext
	mdatStart uint64
	mdatEnd   uint64
	samples   []Sample
	cursor    int
	warnings  []Warning
}

// Open constructs a Demuxer over buf without parsing it; buf must
// remain valid for the Demuxer's entire lifetime (spec.md §3's
// ownership rule: the buffer is borrowed, sample-data views alias
// it).
func Open(buf []byte, opts Options) *Demuxer {
	return &Demuxer{
		buf:   buf,
		opts:  opts,
		log:   newDefaultLogger(opts.Debug),
		state: stateUnparsed,
	}
}

// AttachProbe registers a performance probe. It must be called before
// Init; Init's phase timers and per-stream sample-count gauges report
// into it.
func (d *Demuxer) AttachProbe(p *Probe) {
	d.probe = p
}

func (d *Demuxer) addWarning(w Warning) {
	d.warnings = append(d.warnings, w)
	d.probe.observeWarning()
	d.log.Warn(w.String())
}

// Init runs the full parse sequence described in spec.md §4.F: box
// tree, ftyp, mvhd, per-track stream+sample-table decode, merge sort,
// mdat location, and bit-rate derivation. It is the only place fatal
// errors (spec.md §7) are returned; everything recoverable becomes a
// Warning instead.
func (d *Demuxer) Init() error {
	if d.state != stateUnparsed {
		return newError(ErrInvalidFileFormat, "Init called more than once", nil)
	}

	var topLevel []*box
	d.probe.timePhase("boxtree", func() {
		topLevel = parseTopLevel(d.buf, d.log, d.addWarning)
	})

	moov := findChild(topLevel, "moov")
	if moov == nil {
		return missingRequiredBox("moov")
	}

	if ftypBox := findChild(topLevel, "ftyp"); ftypBox != nil {
		ft, err := decodeFtyp(d.log, ftypBox)
		if err != nil {
			d.addWarning(Warning{Kind: WarnTruncatedTable, Message: "truncated ftyp, ignoring", BoxType: "ftyp"})
		} else {
			d.fileType = ft
		}
	}

	mvhdBox := findChild(moov.Children, "mvhd")
	if mvhdBox == nil {
		return missingRequiredBox("mvhd")
	}
	mh, err := decodeMvhd(d.log, mvhdBox)
	if err != nil {
		return newError(ErrInvalidFileFormat, "mvhd could not be parsed", map[string]any{"error": err.Error()})
	}
	d.timeScale, d.duration = mh.TimeScale, mh.Duration

	if mdatBox := findChild(topLevel, "mdat"); mdatBox != nil {
		d.mdatStart = mdatBox.FileOffset + uint64(mdatBox.HeaderLen)
		d.mdatEnd = d.mdatStart + mdatBox.Size - uint64(mdatBox.HeaderLen)
	}

	var videoTracksSeen, audioTracksSeen int
	var allSamples []Sample

	d.probe.timePhase("streams", func() {
		traks := findAll(moov.Children, "trak")
		for id, trak := range traks {
			sc, ok := d.decodeTrack(uint32(id), trak)
			if !ok {
				continue
			}
			if sc.Kind == KindVideo {
				videoTracksSeen++
			} else {
				audioTracksSeen++
			}
			if (sc.Kind == KindVideo && !d.opts.EnableVideo) || (sc.Kind == KindAudio && !d.opts.EnableAudio) {
				continue
			}
			d.streams = append(d.streams, *sc)
		}
	})

	videoKept, audioKept := 0, 0
	d.probe.timePhase("sampletables", func() {
		for i := range d.streams {
			sc := &d.streams[i]
			stbl := stblForStream(moov.Children, sc.ID)
			if stbl == nil {
				d.addWarning(Warning{Kind: WarnInconsistentSampleCount, Message: fmt.Sprintf("stream %d has no stbl", sc.ID)})
				continue
			}
			st, w := decodeSampleTable(d.log, stbl)
			for _, warn := range w {
				d.addWarning(warn)
			}
			samples, w := buildSamples(sc.ID, st, sc.TimeScale, d.mdatEnd)
			for _, warn := range w {
				d.addWarning(warn)
			}
			allSamples = append(allSamples, samples...)
			d.probe.observeStreamSampleCount(sc.ID, len(samples))

			totalSize := uint64(0)
			for _, sz := range st.sizes {
				totalSize += uint64(sz)
			}
			sc.BitRate, sc.AvgBitRate = computeBitRate(totalSize, sc.Duration, sc.TimeScale)
			sc.FrameRate, sc.IsConstantFPS, sc.AvgFrameRate = frameRate(st.timeToSample, sc.TimeScale)

			if sc.Kind == KindVideo {
				videoKept += len(samples)
			} else {
				audioKept += len(samples)
			}
		}
	})

	if d.opts.EnableVideo && videoTracksSeen > 0 && videoKept == 0 {
		return newError(ErrInvalidSampleTable, "enabled video tracks produced zero samples", nil)
	}
	if d.opts.EnableAudio && audioTracksSeen > 0 && audioKept == 0 {
		return newError(ErrInvalidSampleTable, "enabled audio tracks produced zero samples", nil)
	}

	d.probe.timePhase("merge", func() {
		sort.SliceStable(allSamples, func(i, j int) bool {
			if allSamples[i].TimestampUs != allSamples[j].TimestampUs {
				return allSamples[i].TimestampUs < allSamples[j].TimestampUs
			}
			return allSamples[i].StreamID < allSamples[j].StreamID
		})
	})
	d.samples = allSamples

	d.state = stateInitialised
	return nil
}

// decodeTrack decodes one trak's mdia (mdhd+hdlr) and stsd into a
// StreamContext. ok is false when the track's handler type is
// neither 'vide' nor 'soun' (spec.md §4.D: "anything else -> skip
// track").
func (d *Demuxer) decodeTrack(id uint32, trak *box) (*StreamContext, bool) {
	mdia := findChild(trak.Children, "mdia")
	if mdia == nil {
		d.addWarning(Warning{Kind: WarnInconsistentSampleCount, Message: fmt.Sprintf("trak %d has no mdia", id)})
		return nil, false
	}
	mdhdBox := findChild(mdia.Children, "mdhd")
	hdlrBox := findChild(mdia.Children, "hdlr")
	if mdhdBox == nil || hdlrBox == nil {
		d.addWarning(Warning{Kind: WarnInconsistentSampleCount, Message: fmt.Sprintf("trak %d missing mdhd or hdlr", id)})
		return nil, false
	}

	kind, ok, err := decodeHdlr(d.log, hdlrBox)
	if err != nil || !ok {
		return nil, false
	}

	timeScale, duration, err := decodeMdhd(d.log, mdhdBox)
	if err != nil {
		d.addWarning(Warning{Kind: WarnTruncatedTable, Message: fmt.Sprintf("trak %d has a truncated mdhd", id), BoxType: "mdhd"})
		return nil, false
	}

	sc := &StreamContext{ID: id, Kind: kind, TimeScale: timeScale, Duration: duration}

	minf := findChild(mdia.Children, "minf")
	if minf == nil {
		return sc, true
	}
	stbl := findChild(minf.Children, "stbl")
	if stbl == nil {
		return sc, true
	}
	stsdBox := findChild(stbl.Children, "stsd")
	if stsdBox == nil {
		return sc, true
	}

	entry, warns := decodeStsd(d.log, stsdBox, kind)
	for _, w := range warns {
		d.addWarning(w)
	}
	if entry == nil {
		return sc, true
	}

	sc.CodecFourCC = entry.CodecFourCC
	canon, known := canonicalCodec(kind, entry.CodecFourCC)
	sc.CodecCanonical = canon
	if !known {
		d.addWarning(Warning{Kind: WarnUnknownCodec, Message: "unrecognised codec fourcc, passing through raw", BoxType: entry.CodecFourCC})
	}
	sc.ExtraData = entry.ExtraData
	sc.Width, sc.Height = entry.Width, entry.Height
	sc.Channels, sc.BitDepth, sc.SampleRate = entry.Channels, entry.BitDepth, entry.SampleRate

	return sc, true
}

// stblForStream re-locates the stbl box belonging to the stream at
// position streamID in file-order trak enumeration. StreamID is the
// trak's enumeration index (spec.md §4.F.5: "the index becomes the
// track id"), so this walks traks in the same file order Init used.
func stblForStream(moovChildren []*box, streamID uint32) *box {
	traks := findAll(moovChildren, "trak")
	if int(streamID) >= len(traks) {
		return nil
	}
	trak := traks[streamID]
	mdia := findChild(trak.Children, "mdia")
	if mdia == nil {
		return nil
	}
	minf := findChild(mdia.Children, "minf")
	if minf == nil {
		return nil
	}
	return findChild(minf.Children, "stbl")
}

// computeBitRate derives avg_bit_rate = round(8*Σsizes /
// (duration_ticks/time_scale)) per spec.md §4.F.9, and defaults
// bit_rate to the same value.
func computeBitRate(totalSizeBytes uint64, durationTicks uint64, timeScale uint32) (bitRate, avgBitRate uint32) {
	if durationTicks == 0 || timeScale == 0 {
		return 0, 0
	}
	seconds := float64(durationTicks) / float64(timeScale)
	if seconds <= 0 {
		return 0, 0
	}
	avg := uint32(float64(totalSizeBytes)*8/seconds + 0.5)
	return avg, avg
}

// Close releases the sample index. It is idempotent, per spec.md §5.
func (d *Demuxer) Close() error {
	if d.state == stateClosed {
		return nil
	}
	d.samples = nil
	d.streams = nil
	d.state = stateClosed
	return nil
}

// Reset rewinds the cursor to the first sample without re-parsing.
func (d *Demuxer) Reset() {
	d.cursor = 0
}

// NextSample returns the sample at the cursor and advances it, or
// reports ok=false at end of stream, per spec.md §4.F's next_sample.
func (d *Demuxer) NextSample() (Sample, bool) {
	if d.cursor >= len(d.samples) {
		return Sample{}, false
	}
	s := d.samples[d.cursor]
	d.cursor++
	return s, true
}

// SampleData returns a non-owning slice of the demuxer's buffer for
// one sample. Offsets outside the buffer fail with CorruptData, per
// spec.md §7.
func (d *Demuxer) SampleData(s Sample) ([]byte, error) {
	start := s.FileOffset
	end := start + uint64(s.Size)
	if end > uint64(len(d.buf)) || start < d.mdatStart {
		return nil, newError(ErrCorruptData, "sample data outside buffer/mdat bounds",
			map[string]any{"offset": start, "size": s.Size, "buf_len": len(d.buf)})
	}
	return d.buf[start:end], nil
}

// DecoderSample joins a Sample with its stream's codec configuration
// into the downstream platform-decoder contract of spec.md §6.
func (d *Demuxer) DecoderSample(s Sample) (DecoderSample, error) {
	data, err := d.SampleData(s)
	if err != nil {
		return DecoderSample{}, err
	}
	for _, sc := range d.streams {
		if sc.ID == s.StreamID {
			return DecoderSample{
				Kind:           sc.Kind,
				CodecCanonical: sc.CodecCanonical,
				ExtraData:      sc.ExtraData,
				TimestampUs:    s.TimestampUs,
				DurationUs:     s.DurationUs,
				Keyframe:       s.Keyframe,
				Data:           data,
			}, nil
		}
	}
	return DecoderSample{}, newError(ErrStreamNotFound, "sample references an unknown stream id",
		map[string]any{"stream_id": s.StreamID})
}

// Seek scans from index 0 for the greatest index i such that
// samples[i].timestamp_us <= targetUs and samples[i] is a keyframe,
// per spec.md §4.F's seek algorithm. If no keyframe precedes target,
// cursor resets to 0. Seeking on an empty index is a no-op
// (spec.md §7).
func (d *Demuxer) Seek(targetUs int64) {
	if len(d.samples) == 0 {
		return
	}
	best := 0
	found := false
	for i, s := range d.samples {
		if s.TimestampUs > targetUs {
			break
		}
		if s.Keyframe {
			best = i
			found = true
		}
	}
	if !found {
		best = 0
	}
	d.cursor = best
}

// Info returns the read-only snapshot of spec.md §4.F's info().
func (d *Demuxer) Info() Info {
	return Info{
		Duration:    d.duration,
		TimeScale:   d.timeScale,
		Streams:     append([]StreamContext(nil), d.streams...),
		SampleCount: len(d.samples),
		FileType:    d.fileType,
	}
}

// FrameRateInfo returns the frame-rate projection for one stream.
func (d *Demuxer) FrameRateInfo(streamID uint32) (FrameRateInfo, bool) {
	for _, sc := range d.streams {
		if sc.ID == streamID {
			return FrameRateInfo{StreamID: streamID, FrameRate: sc.FrameRate, IsConstant: sc.IsConstantFPS, AvgFrameRate: sc.AvgFrameRate}, true
		}
	}
	return FrameRateInfo{}, false
}

// BitRateInfo returns the bit-rate projection for one stream.
func (d *Demuxer) BitRateInfo(streamID uint32) (BitRateInfo, bool) {
	for _, sc := range d.streams {
		if sc.ID == streamID {
			return BitRateInfo{StreamID: streamID, BitRate: sc.BitRate, AvgBitRate: sc.AvgBitRate}, true
		}
	}
	return BitRateInfo{}, false
}

// Warnings returns the accumulated non-fatal deviation channel of
// spec.md §4.G.
func (d *Demuxer) Warnings() []Warning {
	return append([]Warning(nil), d.warnings...)
}

func formatStreamID(id uint32) string {
	return fmt.Sprintf("%d", id)
}
