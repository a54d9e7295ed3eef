// types.go
package daslog

// ConsoleOutput configures the human-readable stdout sink.
type ConsoleOutput struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Level   string `json:"level" mapstructure:"level"`
}

// FileOutput configures the main rotated, JSON-structured file sink.
// MaxSize is in megabytes here (operator-facing config unit); it is
// converted to the byte threshold RotationConfig checks against by
// RotationConfigFromFileOutput.
type FileOutput struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	Path            string `json:"path" mapstructure:"path"`
	Level           string `json:"level" mapstructure:"level"`
	MaxSize         int64  `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxRotatedFiles int    `json:"max_rotated_files" mapstructure:"max_rotated_files"`
	MaxAge          int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress        bool   `json:"compress" mapstructure:"compress"`
}

// ModuleOutput overrides the main FileOutput for a single module (e.g.
// "assembly" logging to its own file, optionally mirrored to console).
type ModuleOutput struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	FilePath        string `json:"file_path" mapstructure:"file_path"`
	Level           string `json:"level" mapstructure:"level"`
	ConsoleAlso     bool   `json:"console_also" mapstructure:"console_also"`
	MaxSize         int64  `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxRotatedFiles int    `json:"max_rotated_files" mapstructure:"max_rotated_files"`
	MaxAge          int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress        bool   `json:"compress" mapstructure:"compress"`
}

// LoggingConfig is the root configuration for a CentralLogger; cmd/dasconcat
// builds it in code (internal/dasconf has no logging section).
type LoggingConfig struct {
	DefaultLevel  string                  `json:"default_level" mapstructure:"default_level"`
	Timezone      string                  `json:"timezone" mapstructure:"timezone"`
	Console       *ConsoleOutput          `json:"console" mapstructure:"console"`
	FileOutput    *FileOutput             `json:"file_output" mapstructure:"file_output"`
	ModuleOutputs map[string]ModuleOutput `json:"module_outputs" mapstructure:"module_outputs"`
	ModuleLevels  map[string]string       `json:"module_levels" mapstructure:"module_levels"`
}

// applyConfigDefaults fills in a sensible console-only default when a
// caller supplies a LoggingConfig with no sinks configured at all, so
// upgrading from an older config shape never silently disables logging.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = "info"
	}
	if cfg.Console == nil && cfg.FileOutput == nil {
		cfg.Console = &ConsoleOutput{Enabled: true, Level: cfg.DefaultLevel}
	}
}

// RotationConfigFromFileOutput derives a RotationConfig from a
// FileOutput's embedded rotation fields, converting MaxSize from
// megabytes to bytes.
func RotationConfigFromFileOutput(fo *FileOutput) RotationConfig {
	if fo == nil {
		return RotationConfig{}
	}
	return RotationConfig{
		MaxSize:         fo.MaxSize * bytesPerMB,
		MaxRotatedFiles: fo.MaxRotatedFiles,
		MaxAge:          fo.MaxAge,
		Compress:        fo.Compress,
	}
}

// RotationConfigFromModuleOutput derives a RotationConfig for a module,
// falling back to the shared FileOutput's rotation settings for any
// numeric field the module leaves at zero value. Compress is always the
// module's own setting.
func RotationConfigFromModuleOutput(mo *ModuleOutput, fallback *FileOutput) RotationConfig {
	if mo == nil {
		return RotationConfigFromFileOutput(fallback)
	}
	rc := RotationConfig{
		MaxSize:         mo.MaxSize * bytesPerMB,
		MaxRotatedFiles: mo.MaxRotatedFiles,
		MaxAge:          mo.MaxAge,
		Compress:        mo.Compress,
	}
	if fallback == nil {
		return rc
	}
	if rc.MaxSize == 0 {
		rc.MaxSize = fallback.MaxSize * bytesPerMB
	}
	if rc.MaxRotatedFiles == 0 {
		rc.MaxRotatedFiles = fallback.MaxRotatedFiles
	}
	if rc.MaxAge == 0 {
		rc.MaxAge = fallback.MaxAge
	}
	return rc
}
