// config.go
package dasconf

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/spf13/viper"

	"github.com/Antcating/das-concat/internal/daserr"
)

//go:embed config.yaml
var defaultConfig embed.FS

// SystemKind mirrors SYSTEM.NAME in config.ini: the acquisition system
// this installation is reading packets from.
type SystemKind string

const (
	SystemMekorot SystemKind = "Mekorot"
	SystemPrisma  SystemKind = "Prisma"
)

// Settings is the validated configuration tree loaded through viper
// (validation fills in a default Runtime.NumThreads of 4). Field names follow config.ini's legacy [SECTION].KEY
// layout (spec §6) via mapstructure tags rather than reshaping it.
type Settings struct {
	System struct {
		Name SystemKind `mapstructure:"name"`
	} `mapstructure:"system"`

	Constants struct {
		ConcatTime        float64 `mapstructure:"concat_time"`        // CHUNK_SIZE, seconds
		SPS               float64 `mapstructure:"sps"`                // canonical samples/second
		DX                float64 `mapstructure:"dx"`                 // canonical channel pitch, metres
		TimeDiffThreshold float64 `mapstructure:"time_diff_threshold"`
		DataLoseThreshold float64 `mapstructure:"data_lose_threshold"`
	} `mapstructure:"constants"`

	Path struct {
		LocalPath    string `mapstructure:"localpath"`
		NASPathFinal string `mapstructure:"naspath_final"`
	} `mapstructure:"path"`

	Runtime struct {
		NumThreads int `mapstructure:"num_threads"`
	} `mapstructure:"runtime"`
}

var (
	instance *Settings
	mu       sync.RWMutex
)

// Load reads config.ini-style overrides (if present at path) layered on
// top of the embedded defaults, validates the result, and caches it as
// the process-wide Settings instance. Calling Load more than once
// re-reads and replaces the cached instance; readers should call
// Current() to observe the latest validated settings.
func Load(path string) (*Settings, error) {
	v := viper.New()

	if err := mergeDefaults(v); err != nil {
		return nil, daserr.Newf("dasconf: loading embedded defaults: %w", err).
			Component("dasconf").
			Category(daserr.CategoryConfiguration).
			Build()
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			v.SetConfigFile(path)
			v.SetConfigType("ini")
			if err := v.MergeInConfig(); err != nil {
				return nil, daserr.Newf("dasconf: reading %s: %w", path, err).
					Component("dasconf").
					Category(daserr.CategoryConfiguration).
					Context("path", path).
					Build()
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, daserr.Newf("dasconf: unmarshaling settings: %w", err).
			Component("dasconf").
			Category(daserr.CategoryConfiguration).
			Build()
	}

	if err := validate(settings); err != nil {
		return nil, err
	}

	mu.Lock()
	instance = settings
	mu.Unlock()

	return settings, nil
}

func mergeDefaults(v *viper.Viper) error {
	data, err := fs.ReadFile(defaultConfig, "config.yaml")
	if err != nil {
		return fmt.Errorf("reading embedded config.yaml: %w", err)
	}
	v.SetConfigType("yaml")
	return v.ReadConfig(bytes.NewReader(data))
}

// validate mirrors the isdir(...) / positivity checks in
// original_source/src/config.py: SYSTEM.NAME must be a known kind, SPS
// and DX must be positive, and both path roots must exist.
func validate(s *Settings) error {
	switch s.System.Name {
	case SystemMekorot, SystemPrisma:
	default:
		return daserr.Newf("dasconf: unknown SYSTEM.NAME %q", s.System.Name).
			Component("dasconf").
			Category(daserr.CategoryValidation).
			Build()
	}

	if s.Constants.SPS <= 0 {
		return daserr.Newf("dasconf: CONSTANTS.SPS must be positive, got %v", s.Constants.SPS).
			Component("dasconf").
			Category(daserr.CategoryValidation).
			Build()
	}
	if s.Constants.DX <= 0 {
		return daserr.Newf("dasconf: CONSTANTS.DX must be positive, got %v", s.Constants.DX).
			Component("dasconf").
			Category(daserr.CategoryValidation).
			Build()
	}
	if s.Constants.ConcatTime <= 0 {
		return daserr.Newf("dasconf: CONSTANTS.CONCAT_TIME must be positive, got %v", s.Constants.ConcatTime).
			Component("dasconf").
			Category(daserr.CategoryValidation).
			Build()
	}

	for _, root := range []string{s.Path.LocalPath, s.Path.NASPathFinal} {
		if root == "" {
			continue
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return daserr.Newf("dasconf: path root %q is not a directory", root).
				Component("dasconf").
				Category(daserr.CategoryValidation).
				Context("root", root).
				Build()
		}
	}

	if s.Runtime.NumThreads <= 0 {
		s.Runtime.NumThreads = 4
	}

	return nil
}

// Current returns the most recently loaded Settings, or nil if Load has
// not been called yet.
func Current() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}
