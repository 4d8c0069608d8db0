package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ritual/internal/adapters"
	"ritual/internal/config"
	"ritual/internal/core/ports"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newFileLogger builds a structured logger that writes to a rotating log
// file under workRoot (not to stdout). The initial file name is timestamped the
// way the original single-file log was; lumberjack takes over rotation and
// retention once that file grows past LogMaxSizeMB.
func newFileLogger(workRoot *os.Root) (ports.Logger, func(), error) {
	rootPath := workRoot.Name()
	logsDir := filepath.Join(rootPath, config.LogsDir)
	if err := os.MkdirAll(logsDir, config.DirPermission); err != nil {
		return nil, nil, err
	}

	timestamp := time.Now().Format(config.TimestampFormat)
	logPath := filepath.Join(logsDir, timestamp+config.LogExtension)

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    config.LogMaxSizeMB,
		MaxBackups: config.LogMaxBackups,
		MaxAge:     config.LogMaxAgeDays,
	}

	handler := slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := adapters.NewSlogLoggerFromExisting(slog.New(handler))

	cleanup := func() {
		rotator.Close()
	}
	return logger, cleanup, nil
}
