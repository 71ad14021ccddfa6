package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brightframe/movdemux"
)

const version = "0.1.0"

// movprobe is a thin inspection CLI over the movdemux library: open a
// file, run Init, print the derived track info and any warnings, and
// optionally exercise seek/next_sample or dump probe metrics.
//
// Grounded on the teacher's main.go flag.StringVar + os.Open loop,
// and godeep-mp4/cli/cli.go's flag.Int positional argument style.
func main() {
	var path string
	var seekMs int
	var debug bool
	var noVideo bool
	var noAudio bool

	flag.StringVar(&path, "file", "", "mov/mp4 file to inspect")
	flag.IntVar(&seekMs, "seek", -1, "if >= 0, seek to this offset in milliseconds and print the sample landed on")
	flag.BoolVar(&debug, "debug", false, "enable trace logging and dump probe metrics on exit")
	flag.BoolVar(&noVideo, "no-video", false, "disable video track decoding")
	flag.BoolVar(&noAudio, "no-audio", false, "disable audio track decoding")
	flag.Parse()

	fmt.Printf("movprobe %s\n", version)

	if path == "" {
		fmt.Fprintln(os.Stderr, "movprobe: -file is required")
		os.Exit(1)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "movprobe: reading %s: %v\n", path, err)
		os.Exit(1)
	}

	opts := movdemux.DefaultOptions()
	opts.Debug = debug
	opts.EnableVideo = !noVideo
	opts.EnableAudio = !noAudio

	d := movdemux.Open(buf, opts)

	probe := movdemux.NewProbe()
	d.AttachProbe(probe)

	if err := d.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "movprobe: init failed: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	info := d.Info()
	fmt.Printf("duration=%d ticks @ time_scale=%d, %d streams, %d samples\n",
		info.Duration, info.TimeScale, len(info.Streams), info.SampleCount)
	if info.FileType != nil {
		fmt.Printf("ftyp: major=%s minor=%d compatible=%v\n",
			info.FileType.MajorBrand, info.FileType.MinorVersion, info.FileType.CompatibleBrands)
	}

	for _, sc := range info.Streams {
		fmt.Printf("stream %d [%s] codec=%s (%s)\n", sc.ID, sc.Kind, sc.CodecCanonical, sc.CodecFourCC)
		if sc.Kind == movdemux.KindVideo {
			fmt.Printf("  %dx%d, avg_fps=%.3f constant_fps=%v fps=%.3f\n",
				sc.Width, sc.Height, sc.AvgFrameRate, sc.IsConstantFPS, sc.FrameRate)
		} else {
			fmt.Printf("  %d ch, %d bit, %.0f Hz\n", sc.Channels, sc.BitDepth, sc.SampleRate)
		}
		fmt.Printf("  bit_rate=%d avg_bit_rate=%d\n", sc.BitRate, sc.AvgBitRate)
	}

	for _, w := range d.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if seekMs >= 0 {
		d.Seek(int64(seekMs) * 1000)
		if s, ok := d.NextSample(); ok {
			fmt.Printf("seek(%dms) landed on stream=%d ts=%dus keyframe=%v\n",
				seekMs, s.StreamID, s.TimestampUs, s.Keyframe)
		} else {
			fmt.Printf("seek(%dms) found no sample\n", seekMs)
		}
	}

	if debug {
		dumpMetrics(probe)
	}
}

// dumpMetrics writes the probe's gathered Prometheus metric families
// as text, for ad hoc inspection without standing up an HTTP
// /metrics endpoint.
func dumpMetrics(probe *movdemux.Probe) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(probe); err != nil {
		fmt.Fprintf(os.Stderr, "movprobe: registering probe: %v\n", err)
		return
	}
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "movprobe: gathering metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		fmt.Printf("# %s: %s\n", mf.GetName(), mf.GetHelp())
		for _, m := range mf.GetMetric() {
			fmt.Printf("  %v\n", m)
		}
	}
}
