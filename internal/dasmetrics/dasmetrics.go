// Package dasmetrics exposes prometheus counters and histograms for the
// Assembly Engine's throughput and the Resampler's latency. A nil
// *Metrics is safe to call methods on — they become no-ops — so callers
// that run without a registry (tests, one-off CLI invocations) do not
// need to special-case metrics collection.
package dasmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and histograms registered against one
// prometheus.Registerer.
type Metrics struct {
	chunksWritten    *prometheus.CounterVec
	gapsDetected     prometheus.Counter
	overlapsSkipped  prometheus.Counter
	boundarySplits   prometheus.Counter
	resampleDuration prometheus.Histogram
}

// New registers the das-concat metric family against reg and returns the
// handle used to record observations.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chunksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dasconcat",
			Name:      "chunks_written_total",
			Help:      "Chunks flushed to the sink, labelled by outcome.",
		}, []string{"outcome"}),
		gapsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dasconcat",
			Name:      "gaps_detected_total",
			Help:      "Packets whose timestamp left a gap against chunk coverage.",
		}),
		overlapsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dasconcat",
			Name:      "overlaps_skipped_total",
			Help:      "Packets entirely within already-covered ground, skipped.",
		}),
		boundarySplits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dasconcat",
			Name:      "boundary_splits_total",
			Help:      "Packets split at a chunk or calendar-day boundary.",
		}),
		resampleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dasconcat",
			Name:      "resample_duration_seconds",
			Help:      "Wall-clock time spent decimating one packet.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.chunksWritten, m.gapsDetected, m.overlapsSkipped, m.boundarySplits, m.resampleDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordChunkWritten(outcome string) {
	if m == nil {
		return
	}
	m.chunksWritten.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGap() {
	if m == nil {
		return
	}
	m.gapsDetected.Inc()
}

func (m *Metrics) RecordOverlapSkip() {
	if m == nil {
		return
	}
	m.overlapsSkipped.Inc()
}

func (m *Metrics) RecordBoundarySplit() {
	if m == nil {
		return
	}
	m.boundarySplits.Inc()
}

func (m *Metrics) ObserveResampleDuration(seconds float64) {
	if m == nil {
		return
	}
	m.resampleDuration.Observe(seconds)
}
