package movdemux

import "testing"

func TestCanonicalCodecKnownVideo(t *testing.T) {
	canon, known := canonicalCodec(KindVideo, "avc1")
	if !known || canon != "avc1" {
		t.Fatalf("canonicalCodec(video, avc1) = %q, %v", canon, known)
	}
}

func TestCanonicalCodecCaseInsensitive(t *testing.T) {
	canon, known := canonicalCodec(KindAudio, "fLaC")
	if !known || canon != "flac" {
		t.Fatalf("canonicalCodec(audio, fLaC) = %q, %v, want flac, true", canon, known)
	}
}

func TestCanonicalCodecUnknownPassesThrough(t *testing.T) {
	canon, known := canonicalCodec(KindVideo, "zzzz")
	if known || canon != "zzzz" {
		t.Fatalf("canonicalCodec(video, zzzz) = %q, %v, want zzzz, false", canon, known)
	}
}

func TestCanonicalAudioMapsAAC(t *testing.T) {
	canon, known := canonicalAudioCodec("mp4a")
	if !known || canon != "mp4a.40.2" {
		t.Fatalf("canonicalAudioCodec(mp4a) = %q, %v", canon, known)
	}
}
