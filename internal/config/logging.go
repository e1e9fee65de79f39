package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger from cfg. Records go to console as
// text and to cfg.LogFile as JSON. A nil console means file only, which is
// what the chat screen uses while it owns the terminal. If the log file
// cannot be opened the logger keeps the console alone, or discards
// everything when there is no console.
func SetupLogger(cfg Config, console io.Writer) (*slog.Logger, func() error) {
	noop := func() error { return nil }

	file, err := openLogFile(cfg.LogFile)
	if err != nil {
		logger := NewLogger(console, nil, cfg.LogLevel)
		logger.Warn("log file unavailable, not logging to file", "file", cfg.LogFile, "error", err)
		return logger, noop
	}
	return NewLogger(console, file, cfg.LogLevel), file.Close
}

// NewLogger fans records out to a text handler on console and a JSON handler
// on file. Either writer may be nil; with neither the logger discards.
func NewLogger(console, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, opts))
	}
	if file != nil {
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}
	if len(handlers) == 0 {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// openLogFile opens path for appending, creating its directory. The log can
// carry user and session ids, so it is private to the user.
func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
