package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Antcating/das-concat/internal/daslog"
)

func TestStore_GetAbsentReturnsNilNil(t *testing.T) {
	s := New(t.TempDir(), daslog.NewTestLogger())
	ckpt, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, ckpt)
}

func TestStore_PutThenGetRoundTrips(t *testing.T) {
	s := New(t.TempDir(), daslog.NewTestLogger())
	require.NoError(t, s.PutLast(1700006398.5, 1500))

	ckpt, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, ckpt)
	assert.InDelta(t, 1700006398.5, ckpt.OriginTime, 1e-9)
	assert.Equal(t, 1500, ckpt.Cursor)
}

func TestStore_PutLastIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, daslog.NewTestLogger())
	require.NoError(t, s.PutLast(1700000000, 10))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.Ext(e.Name()) == ".tmp", "no leftover temp file after a successful write")
	}
}

func TestStore_ClearLastToleratesAbsence(t *testing.T) {
	s := New(t.TempDir(), daslog.NewTestLogger())
	require.NoError(t, s.ClearLast())
}

func TestStore_ClearCarryToleratesAbsence(t *testing.T) {
	s := New(t.TempDir(), daslog.NewTestLogger())
	require.NoError(t, s.ClearCarry())
}

func TestStore_CarryRoundTrips(t *testing.T) {
	s := New(t.TempDir(), daslog.NewTestLogger())
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	require.NoError(t, s.PutCarry(m))

	got, err := s.GetCarry()
	require.NoError(t, err)
	require.NotNil(t, got)
	rows, cols := got.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 5.0, got.At(1, 1))

	require.NoError(t, s.ClearCarry())
	got, err = s.GetCarry()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_GetRejectsTruncatedLastFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, lastFile), []byte("1700000000\n"), 0o644))

	s := New(dir, daslog.NewTestLogger())
	_, err := s.Get()
	assert.Error(t, err)
}
