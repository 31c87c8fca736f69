// Package logging initializes the global structured logger used across the
// API and worker processes, grounded on the teacher's use of zerolog and
// generalized from internal/infra/logger/logger.go's Init(cfg) shape.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls how the global logger is constructed.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	AsJSON bool   // true for machine-parseable JSON (production), false for a colorized console writer (local dev)
}

// Init configures the global zerolog logger and sets it as the package-level
// default so every package can log via zerolog/log without threading a
// logger through constructors.
func Init(cfg Config) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if cfg.AsJSON {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}).With().Timestamp().Logger()
	}

	if level == zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
