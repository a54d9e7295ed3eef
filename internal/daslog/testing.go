// testing.go
package daslog

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CreateTestCore creates a zapcore.Core that writes to the given io.Writer
// This is useful for testing to intercept logger output
func CreateTestCore(config Config, writer io.Writer) (zapcore.Core, error) {
	// Determine log level
	level := zapcore.InfoLevel
	if config.Development {
		level = zapcore.DebugLevel
	}

	level = getZapLevel(config.Level, level)

	// Create encoder config
	encoderConfig := createEncoderConfig()

	// For human-readable logs, use colored levels unless DisableColor is set
	if !config.JSON && !config.DisableColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	// Create the encoder based on the encoding
	var encoder zapcore.Encoder
	if config.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	// Set up output
	output := zapcore.AddSync(writer)

	return zapcore.NewCore(encoder, output, zap.NewAtomicLevelAt(level)), nil
}

// NewTestLogger returns a Logger backed by a console-only CentralLogger,
// for use in package tests that need a Logger but don't care where its
// output goes.
func NewTestLogger() Logger {
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: true, Level: "debug"},
	})
	if err != nil {
		// Fallback console-only logger never errors in practice; panic
		// here would only fire on a misconfigured test helper itself.
		panic(err)
	}
	return cl.Module("test")
}
