package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Development runs get debug level and
// source annotations; production stays at info. LOG_FORMAT=json switches to
// the JSON handler for log shippers.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg == nil || !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
