// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config mirrors the logging section of the octoka configuration.
type Config struct {
	// Level is trace, debug, info, warn or error. Unknown values mean info.
	Level string

	// Format is json (default) or console.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	Timestamp bool

	// Version, if set, is attached to every entry.
	Version string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is what the logger uses before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // config loading logs before Init runs
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. The previous logger keeps working for
// anyone still holding it.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).With()
	if cfg.Timestamp {
		c = c.Timestamp()
	}
	if cfg.Caller {
		c = c.Caller()
	}
	if cfg.Version != "" {
		c = c.Str("version", cfg.Version)
	}
	l := c.Logger()
	current.Store(&l)
}

// parseLevel accepts zerolog's level names plus "warning" and "off".
func parseLevel(level string) zerolog.Level {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger installs l as the global logger; tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is meant to be passed by value
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Debug starts a debug entry on the global logger.
func Debug() *zerolog.Event { return current.Load().Debug() }

// Info starts an info entry.
//
//	logging.Info().Str("addr", addr).Msg("Listening")
func Info() *zerolog.Event { return current.Load().Info() }

// Warn starts a warning entry.
func Warn() *zerolog.Event { return current.Load().Warn() }

// Error starts an error entry.
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal starts a fatal entry; the process exits after it is written.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// IsLevelEnabled reports whether entries at level are written at all, so
// callers can skip building expensive fields.
func IsLevelEnabled(level zerolog.Level) bool {
	return zerolog.GlobalLevel() <= level
}

// WithComponent returns a child of the global logger tagged with component.
//
//	log := logging.WithComponent("keys")
func WithComponent(component string) zerolog.Logger {
	return current.Load().With().Str("component", component).Logger()
}

// NewTestLogger returns a timestamped JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
