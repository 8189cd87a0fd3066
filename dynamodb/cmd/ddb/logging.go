package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// newLogger writes text logs to w and, when cfg.LogFile is set, JSON logs
// to that file as well. The returned close func releases the file.
func newLogger(cfg Config, w io.Writer) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
		}
	}

	logHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFile == "" {
		return slog.New(logHandler), func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(
		slogmulti.Fanout(
			logHandler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}),
		),
	)
	return logger, f.Close, nil
}
