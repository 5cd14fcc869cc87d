// Package obs carries the ambient observability stack: structured logging
// (zerolog) and Prometheus metrics.
package obs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogFormat selects the logger's output encoding.
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatPretty LogFormat = "pretty"
)

// NewLogger builds a zerolog.Logger tagged with the "tweak" service name,
// timestamped and carrying caller info.
func NewLogger(level zerolog.Level, format LogFormat) zerolog.Logger {
	var output io.Writer = os.Stdout
	if format == LogFormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	zerolog.SetGlobalLevel(level)
	return zerolog.New(output).With().Timestamp().Caller().Str("service", "tweak").Logger()
}

// ParseLevel maps a configured string to a zerolog.Level, defaulting to
// Info on anything unrecognised.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
