package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the slog.Logger both binaries share: JSON when
// LOG_FORMAT=json, plain text otherwise for local runs. Every record
// carries the service name for log aggregation.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "abasto-pos"))
}
