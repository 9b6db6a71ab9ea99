// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog logger shared by signalbox commands.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel = "SIGNALBOX_LOG_LEVEL"
	EnvLogJSON  = "SIGNALBOX_LOG_JSON"
)

// Options controls logger construction.
type Options struct {
	Level string // trace, debug, info, warn, error, disabled
	JSON  bool
	Out   io.Writer // defaults to os.Stderr

	// SkipEnv leaves Level and JSON as given. Set when the caller has
	// already resolved the environment against higher-precedence flags.
	SkipEnv bool
}

// New builds a logger from opts, applying environment overrides.
func New(opts Options) zerolog.Logger {
	if !opts.SkipEnv {
		applyEnvOverrides(&opts)
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	level, ok := ParseLevel(opts.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func applyEnvOverrides(opts *Options) {
	if lvl := strings.TrimSpace(os.Getenv(EnvLogLevel)); lvl != "" {
		opts.Level = lvl
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvLogJSON))); err == nil {
		opts.JSON = v
	}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
