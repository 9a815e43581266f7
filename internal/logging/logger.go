// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/neexbeast/weather-service/internal/config"
)

// New returns a colourised text logger in dev and a JSON logger otherwise.
func New(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", cfg.AppTitle)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", cfg.AppTitle,
		"version", cfg.AppVersion,
		"env", cfg.AppEnv,
	)
}
