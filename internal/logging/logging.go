// Package logging builds the application's zap logger: human-readable
// console output plus an append-only error log file, one file per day,
// under the user-data logs directory.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger that tees console output (at the configured level)
// with error-and-above entries appended to logs/YYYYMMDD.log. The file core
// carries full structured context so failures can be diagnosed after the
// fact without the console scrollback.
func New(logDir, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEnc),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	if logDir == "" {
		return zap.New(console), nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	name := filepath.Join(logDir, time.Now().Format("20060102")+".log")
	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileEnc),
		zapcore.Lock(file),
		zapcore.ErrorLevel,
	)

	return zap.New(zapcore.NewTee(console, fileCore)), nil
}
