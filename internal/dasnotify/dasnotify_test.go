package dasnotify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antcating/das-concat/internal/daserr"
)

func TestInit_EmptyDSNYieldsDisabledReporter(t *testing.T) {
	r, err := Init("", "")
	require.NoError(t, err)
	assert.False(t, r.IsEnabled())
}

func TestDisabledReporter_ReportErrorIsNoop(t *testing.T) {
	r, _ := Init("", "")
	ee := daserr.New(errors.New("boom")).
		Component("test").
		Category(daserr.CategoryCorruptInput).
		Build()

	assert.NotPanics(t, func() { r.ReportError(ee) })
}

func TestNilReporter_IsEnabledAndFlushAreSafe(t *testing.T) {
	var r *Reporter
	assert.False(t, r.IsEnabled())
	assert.NotPanics(t, func() { Flush(r) })
}

func TestFlush_DisabledReporterIsNoop(t *testing.T) {
	r, _ := Init("", "")
	assert.NotPanics(t, func() { Flush(r) })
}
