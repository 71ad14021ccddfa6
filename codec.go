package movdemux

import "strings"

// videoCodecTable and audioCodecTable map a lowercase fourcc to its
// canonical codec string, sufficient to configure a downstream
// hardware decoder per spec.md §4.E. Unknown fourccs pass through
// unchanged and raise WarnUnknownCodec rather than failing Init.
//
// Grounded on the teacher's enum.go fourcc constants
// (SrsMp4BoxTypeAVC1/MP4A/...) generalized from box-type identifiers
// into a codec string lookup, cross-checked against
// other_examples/AlexxIT-go2rtc__atoms.go and
// other_examples/bluenviron-mediamtx__sample.go's codec-string
// conventions for the entries the teacher's FLV-era tables don't
// cover (hev1/vp9/av1/opus/flac/pcm variants).
var videoCodecTable = map[string]string{
	"avc1": "avc1",
	"avc3": "avc1",
	"hev1": "hev1",
	"hvc1": "hvc1",
	"vp08": "vp8",
	"vp09": "vp9",
	"av01": "av01",
	"mp4v": "mp4v.20.9",
	"mjpa": "mjpeg",
	"mjpb": "mjpeg",
	"mjpg": "mjpeg",
	"apch": "prores",
	"apcn": "prores",
	"apcs": "prores",
	"apco": "prores",
	"ap4h": "prores",
}

// audioCodecTable is keyed lowercase; "fLaC" from spec.md §4.E is
// matched via the case-insensitive lookup in canonicalAudioCodec.
var audioCodecTable = map[string]string{
	"mp4a": "mp4a.40.2",
	"opus": "opus",
	"mp3":  "mp3",
	"flac": "flac",
	"vorb": "vorbis",
	"lpcm": "pcm-s16",
	"sowt": "pcm-s16",
	"twos": "pcm-s16",
	"in24": "pcm-s24",
	"in32": "pcm-s32",
	"fl32": "pcm-f32",
	"fl64": "pcm-f64",
}

// canonicalVideoCodec returns the canonical codec string for a video
// fourcc and whether it was a known mapping.
func canonicalVideoCodec(fourcc string) (string, bool) {
	canon, ok := videoCodecTable[strings.ToLower(fourcc)]
	return canon, ok
}

// canonicalAudioCodec returns the canonical codec string for an audio
// fourcc and whether it was a known mapping.
func canonicalAudioCodec(fourcc string) (string, bool) {
	canon, ok := audioCodecTable[strings.ToLower(fourcc)]
	return canon, ok
}

// canonicalCodec dispatches by stream kind and falls back to passing
// the raw fourcc through unchanged for unknown codecs, per spec.md
// §4.E's "unknown fourccs pass through unchanged" rule. The caller is
// responsible for recording the accompanying WarnUnknownCodec.
func canonicalCodec(kind StreamKind, fourcc string) (canonical string, known bool) {
	if kind == KindVideo {
		return lookupOrPassthrough(fourcc, canonicalVideoCodec)
	}
	return lookupOrPassthrough(fourcc, canonicalAudioCodec)
}

func lookupOrPassthrough(fourcc string, lookup func(string) (string, bool)) (string, bool) {
	if canon, ok := lookup(fourcc); ok {
		return canon, true
	}
	return fourcc, false
}
