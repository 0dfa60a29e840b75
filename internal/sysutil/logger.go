// Package sysutil holds process-level helpers shared by the CLI: logger
// setup and small string predicates for flags and environment values.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Matching ignores case
// and surrounding space; unknown values fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// SetupLogger installs the process-wide zerolog logger and global level.
// pretty switches to a console writer for local runs; out defaults to stderr.
func SetupLogger(level string, pretty bool, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).With().Timestamp().Str("service", "newscheck").Logger()
	log.Logger = l
	return l
}
