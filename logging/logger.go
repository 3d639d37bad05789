// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared across packages.
const (
	FieldEndpoint = "endpoint"
	FieldConnID   = "conn_id"
	FieldRemote   = "remote"
	FieldAddr     = "addr"
	FieldSeq      = "seq"
	FieldCode     = "code"
	FieldDuration = "duration"
	FieldStack    = "stack"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string // auto, console or json
	Development bool
}

// New constructs a zap logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch format := resolveFormat(opts.Format); format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Development = opts.Development
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	// Handler failures attach their own stack field.
	cfg.DisableStacktrace = !opts.Development

	return cfg.Build()
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("log level: unsupported value %q", level)
}

func resolveFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != "auto" {
		return format
	}
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}
