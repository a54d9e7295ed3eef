package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Antcating/das-concat/internal/daslog"
)

func TestFormatChunkTime_IntegralDropsFraction(t *testing.T) {
	assert.Equal(t, "1700006400", formatChunkTime(1700006400.0))
}

func TestFormatChunkTime_KeepsFractionalSeconds(t *testing.T) {
	assert.Equal(t, "1700006398.37", formatChunkTime(1700006398.37))
}

func TestHDF5Sink_PathForLayout(t *testing.T) {
	s := New("/data/save", daslog.NewTestLogger())
	path := s.pathFor(1700006400.0)
	// 1700006400 UTC is 2023-11-15T00:00:00Z.
	assert.Equal(t, "/data/save/2023/20231115/1700006400.h5", path)
}
