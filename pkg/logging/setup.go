package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gitlab.com/insightbox/insightbox-backend/pkg/env"
)

// Setup builds the slog handler that terminates the log pipeline. Local mode writes
// text, every other mode writes JSON. An empty logPath means stdout. The returned
// cleanup closes the log file, if any.
func Setup(mode env.Mode, logPath string) (slog.Handler, func() error, error) {
	var (
		w       io.Writer = os.Stdout
		cleanup           = func() error { return nil }
	)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", logPath, err)
		}
		w = f
		cleanup = f.Close
	}

	return NewHandler(w, mode), cleanup, nil
}

func NewHandler(w io.Writer, mode env.Mode) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     mode.SlogLevel(),
		AddSource: mode == env.Local,
	}
	if mode == env.Local {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
