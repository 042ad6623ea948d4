package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Handlers log with
// request_id correlation; domain packages stay logger-free.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
