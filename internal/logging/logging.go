// Package logging builds the zap logger used for a run: human-readable
// output on stderr plus a JSON log file inside the run directory.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ragbench/internal/config"
)

// New returns a logger for cfg. When runDir is non-empty and cfg.File is not
// "-", entries are also written as JSON to runDir/cfg.File. The returned
// closer flushes and closes the file.
func New(cfg config.LoggingConfig, runDir string) (*zap.Logger, func(), error) {
	return build(cfg, runDir, true)
}

// NewFileOnly is New without the stderr output, for interactive sessions
// that own the terminal.
func NewFileOnly(cfg config.LoggingConfig, runDir string) (*zap.Logger, func(), error) {
	return build(cfg, runDir, false)
}

func build(cfg config.LoggingConfig, runDir string, console bool) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging level: %w", err)
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console", "":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, nil, fmt.Errorf("logging format %q: want console or json", cfg.Format)
	}
	var cores []zapcore.Core
	if console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}

	closer := func() {}
	if runDir != "" && cfg.File != "" && cfg.File != "-" {
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(filepath.Join(runDir, cfg.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.AddSync(f), level))
		closer = func() { _ = f.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger, func() {
		_ = logger.Sync()
		closer()
	}, nil
}
