package movdemux

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Probe is the optional performance probe of spec.md §4.H, realised
// as a prometheus.Collector: a histogram of Init phase durations, a
// counter of warnings emitted, and a gauge of sample counts per
// stream. Attaching one never puts timing on the cursor's
// next_sample()/seek() hot path — per spec.md §5 the demuxer has no
// suspension points, and the probe only wraps the handful of Init
// phases.
//
// Grounded on langhuihui-monibuca/prometheus.go's prometheusDesc
// struct and Collect-style descriptor usage, adapted here from a
// system-metrics collector into a parse-phase collector.
type Probe struct {
	phaseDuration *prometheus.HistogramVec
	warnings      prometheus.Counter
	sampleCount   *prometheus.GaugeVec
}

// NewProbe constructs a Probe. Attach it with Demuxer.AttachProbe
// before calling Init.
func NewProbe() *Probe {
	return &Probe{
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movdemux_init_phase_duration_seconds",
			Help:    "Duration of each Init phase (boxtree, streams, sampletables, merge).",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movdemux_warnings_total",
			Help: "Total non-fatal warnings accumulated during Init.",
		}),
		sampleCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "movdemux_stream_sample_count",
			Help: "Number of samples indexed per stream id after Init.",
		}, []string{"stream_id"}),
	}
}

// Describe implements prometheus.Collector.
func (p *Probe) Describe(ch chan<- *prometheus.Desc) {
	p.phaseDuration.Describe(ch)
	p.warnings.Describe(ch)
	p.sampleCount.Describe(ch)
}

// Collect implements prometheus.Collector.
func (p *Probe) Collect(ch chan<- prometheus.Metric) {
	p.phaseDuration.Collect(ch)
	p.warnings.Collect(ch)
	p.sampleCount.Collect(ch)
}

// timePhase records how long fn took under the given phase label. A
// nil Probe makes this a plain call with no timing overhead.
func (p *Probe) timePhase(phase string, fn func()) {
	if p == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	p.phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func (p *Probe) observeWarning() {
	if p == nil {
		return
	}
	p.warnings.Inc()
}

func (p *Probe) observeStreamSampleCount(streamID uint32, count int) {
	if p == nil {
		return
	}
	p.sampleCount.WithLabelValues(formatStreamID(streamID)).Set(float64(count))
}
