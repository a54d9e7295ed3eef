package dasconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SystemMekorot, settings.System.Name)
	assert.Equal(t, 100.0, settings.Constants.SPS)
	assert.Equal(t, 4.0, settings.Constants.DX)
	assert.Equal(t, 60.0, settings.Constants.ConcatTime)
	assert.Equal(t, 4, settings.Runtime.NumThreads)
}

func TestLoad_IniOverlay(t *testing.T) {
	localDir := t.TempDir()
	nasDir := t.TempDir()

	iniPath := filepath.Join(t.TempDir(), "config.ini")
	contents := "[SYSTEM]\nname = Prisma\n\n[CONSTANTS]\nsps = 200\ndx = 2\n\n[PATH]\nlocalpath = " + localDir + "\nnaspath_final = " + nasDir + "\n"
	require.NoError(t, os.WriteFile(iniPath, []byte(contents), 0o644))

	settings, err := Load(iniPath)
	require.NoError(t, err)
	assert.Equal(t, SystemPrisma, settings.System.Name)
	assert.Equal(t, 200.0, settings.Constants.SPS)
	assert.Equal(t, 2.0, settings.Constants.DX)
	assert.Equal(t, localDir, settings.Path.LocalPath)
}

func TestLoad_RejectsUnknownSystemName(t *testing.T) {
	iniPath := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte("[SYSTEM]\nname = Bogus\n"), 0o644))

	_, err := Load(iniPath)
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveSPS(t *testing.T) {
	iniPath := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte("[CONSTANTS]\nsps = 0\n"), 0o644))

	_, err := Load(iniPath)
	assert.Error(t, err)
}

func TestLoad_RejectsMissingPathRoot(t *testing.T) {
	iniPath := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(iniPath, []byte("[PATH]\nlocalpath = /no/such/dir/surely\n"), 0o644))

	_, err := Load(iniPath)
	assert.Error(t, err)
}

func TestCurrent_ReflectsLastLoad(t *testing.T) {
	_, err := Load("")
	require.NoError(t, err)
	assert.NotNil(t, Current())
	assert.Equal(t, SystemMekorot, Current().System.Name)
}
