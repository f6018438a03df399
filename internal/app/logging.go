// Package app holds process-wide plumbing shared by the CLI: logger
// construction, run identifiers and operation errors.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLogLevel parses debug, info, warn (or warning) and error, case
// insensitively.
func ParseLogLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// LoggerConfig configures NewLogger.
type LoggerConfig struct {
	// Level is the minimum level written.
	Level zapcore.Level
	// JSON selects the JSON encoder instead of the console encoder.
	JSON bool
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// NewLogger builds a zap logger writing to cfg.Output.
func NewLogger(cfg LoggerConfig) *zap.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var enc zapcore.Encoder
	if cfg.JSON {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(cfg.Level))
	return zap.New(core)
}

// NewRunID returns a fresh identifier for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRun tags every entry of l with the run identifier.
func WithRun(l *zap.Logger, runID string) *zap.Logger {
	return l.With(zap.String("run", runID))
}
