package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide JSON logger. Dev environments get
// debug output; everything else stays at info to keep volume sane.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "dev" {
		opts.Level = slog.LevelDebug
	}

	h := NewTraceHandler(slog.NewJSONHandler(os.Stdout, opts))
	return slog.New(h).With(slog.String("env", env))
}
