package dasmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordChunkWritten("closed")
	m.RecordGap()
	m.RecordOverlapSkip()
	m.RecordBoundarySplit()
	m.ObserveResampleDuration(0.25)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"dasconcat_chunks_written_total",
		"dasconcat_gaps_detected_total",
		"dasconcat_overlaps_skipped_total",
		"dasconcat_boundary_splits_total",
		"dasconcat_resample_duration_seconds",
	} {
		assert.True(t, names[want], "expected metric %s to be registered", want)
	}
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics_MethodsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordChunkWritten("closed")
		m.RecordGap()
		m.RecordOverlapSkip()
		m.RecordBoundarySplit()
		m.ObserveResampleDuration(1.0)
	})
}
