// Package logging wraps zap with the defaults hbench uses for diagnostics.
// Diagnostics go to stderr so the run summary on stdout stays machine-readable.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
	level zapcore.Level
}

type Config struct {
	Level            string   `json:"level" yaml:"level"`
	Encoding         string   `json:"encoding" yaml:"encoding"` // json or console
	OutputPaths      []string `json:"output_paths" yaml:"output_paths"`
	ErrorOutputPaths []string `json:"error_output_paths" yaml:"error_output_paths"`
}

func defaultConfig() *Config {
	return &Config{
		Level:            "warn",
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = defaultConfig()
	}
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	zapConfig := zap.NewProductionConfig()
	// Every failed request may be logged; sampling would drop them.
	zapConfig.Sampling = nil
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	switch config.Encoding {
	case "":
		zapConfig.Encoding = "console"
	case "json", "console":
		zapConfig.Encoding = config.Encoding
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json or console)", config.Encoding)
	}

	zapConfig.OutputPaths = config.OutputPaths
	if len(zapConfig.OutputPaths) == 0 {
		zapConfig.OutputPaths = []string{"stderr"}
	}
	zapConfig.ErrorOutputPaths = config.ErrorOutputPaths
	if len(zapConfig.ErrorOutputPaths) == 0 {
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.CallerKey = "caller"
	zapConfig.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger, level: level}, nil
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With(zap.String("component", component)),
		level:  l.level,
	}
}

func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		level:  l.level,
	}
}

func (l *Logger) IsDebugEnabled() bool {
	return l.level <= zapcore.DebugLevel
}

// SafeSync flushes buffered entries, ignoring the EINVAL zap reports for terminals.
func (l *Logger) SafeSync() {
	if l != nil && l.Logger != nil {
		_ = l.Logger.Sync()
	}
}
