// config.go
package daslog

import (
	"go.uber.org/zap/zapcore"
)

// createEncoderConfig returns the zapcore.EncoderConfig shared by the
// console test core and the rotating file core; callers override
// EncodeLevel afterward for color/no-color variants.
func createEncoderConfig() zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return cfg
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the minimum level logs will be written for
	Level string `json:"level"`
	// JSON enables structured JSON logging; when false, logs are in human-readable format
	JSON bool `json:"json"`
	// Development puts the logger in development mode, which changes the behavior of DPanicLevel
	Development bool `json:"development"`
	// FilePath is the path to the log file; if empty, logs go to stdout
	FilePath string `json:"file_path"`
	// DisableColor disables colored output for console logging
	DisableColor bool `json:"disable_color"`
	// DisableCaller disables including the calling function in the log output
	DisableCaller bool `json:"disable_caller"`
	// ForceJSONFile makes rotating file loggers use JSON even when JSON is false
	ForceJSONFile bool `json:"force_json_file"`
}

// DefaultConfig returns a default configuration for development
func DefaultConfig() Config {
	return Config{
		Level:         "",
		JSON:          false,
		Development:   true,
		FilePath:      "",
		DisableColor:  false,
		DisableCaller: false,
	}
}

// ProductionConfig returns a configuration suitable for production environments
func ProductionConfig() Config {
	return Config{
		Level:         "info",
		JSON:          true,
		Development:   false,
		FilePath:      "",
		DisableColor:  true,
		DisableCaller: false,
	}
}

// bytesPerMB converts the megabyte-denominated FileOutput/ModuleOutput
// limits into the byte threshold RotationConfig checks against.
const bytesPerMB = 1024 * 1024

// RotationConfig contains settings for log rotation, denominated in
// bytes (MaxSize) so RotationManager can compare it directly against
// os.FileInfo.Size() without a conversion at check time.
type RotationConfig struct {
	// MaxSize is the maximum size in bytes of the log file before it gets rotated
	MaxSize int64 `json:"max_size_bytes"`
	// MaxRotatedFiles is the maximum number of old log files to retain
	MaxRotatedFiles int `json:"max_rotated_files"`
	// MaxAge is the maximum number of days to retain old log files
	MaxAge int `json:"max_age_days"`
	// Compress determines if the rotated log files should be compressed using gzip
	Compress bool `json:"compress"`
}

// IsEnabled reports whether rotation is configured at all (MaxSize > 0).
func (r RotationConfig) IsEnabled() bool {
	return r.MaxSize > 0
}

// DefaultRotationConfig returns a default configuration for log rotation
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:         100 * bytesPerMB,
		MaxRotatedFiles: 5,
		MaxAge:          30, // 30 days
		Compress:        true,
	}
}

// getZapLevel converts a level string to zapcore.Level
func getZapLevel(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	if levelStr == "" {
		return defaultLevel
	}

	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		return defaultLevel
	}
	return level
}
