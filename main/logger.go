package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a debug logger writing to the given file. The terminal
// itself belongs to the UI, so an empty path means logging is off. The
// returned func closes the file.
func NewLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(f, &opts)), func() { f.Close() }, nil
}
