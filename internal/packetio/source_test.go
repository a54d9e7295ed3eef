package packetio

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antcating/das-concat/internal/daslog"
	"github.com/Antcating/das-concat/internal/model"
)

func TestSource_SkipsTodayDirectory(t *testing.T) {
	root := t.TempDir()

	todayDir := time.Now().UTC().Format("20060102")
	require.NoError(t, os.MkdirAll(filepath.Join(root, todayDir), 0o755))
	writeColumnarStub(t, filepath.Join(root, todayDir), 1700000000)

	pastDir := "20200101"
	require.NoError(t, os.MkdirAll(filepath.Join(root, pastDir), 0o755))
	writeColumnarStub(t, filepath.Join(root, pastDir), 1577836800)

	src, err := NewSource(root, model.Columnar, daslog.NewTestLogger())
	require.NoError(t, err)

	d, err := src.NextDescriptor(0)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, float64(1577836800), d.Timestamp)

	// the only remaining candidate (today's dir) must never surface
	d2, err := src.NextDescriptor(1577836801)
	require.NoError(t, err)
	assert.Nil(t, d2)
}

func TestSource_ReturnsEarliestAtOrAfterMinTime(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "20200101")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeColumnarStub(t, dir, 100)
	writeColumnarStub(t, dir, 200)
	writeColumnarStub(t, dir, 300)

	src, err := NewSource(root, model.Columnar, daslog.NewTestLogger())
	require.NoError(t, err)

	d, err := src.NextDescriptor(150)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, float64(200), d.Timestamp)
}

func TestSource_MissingRootIsNotFatal(t *testing.T) {
	src, err := NewSource("/no/such/root/surely", model.Columnar, daslog.NewTestLogger())
	require.NoError(t, err)

	d, err := src.NextDescriptor(0)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSource_SweepDrainsMarkedDirectories(t *testing.T) {
	src, err := NewSource(t.TempDir(), model.Columnar, daslog.NewTestLogger())
	require.NoError(t, err)

	assert.Empty(t, src.Sweep())

	src.MarkConsumed("/data/20230101")
	src.MarkConsumed("/data/20230102")
	assert.Equal(t, []string{"/data/20230101", "/data/20230102"}, src.Sweep())

	// Sweep drains: a second call with nothing new marked is empty.
	assert.Empty(t, src.Sweep())
}

func writeColumnarStub(t *testing.T, dir string, epoch int64) {
	t.Helper()
	name := filepath.Join(dir, "das_SR_"+strconv.FormatInt(epoch, 10)+".h5")
	require.NoError(t, os.WriteFile(name, []byte("stub"), 0o644))
}
