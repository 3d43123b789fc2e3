// Package logger builds the application's zerolog logger.  Loggers are
// passed to the components that need them; nothing here is global.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger at level writing to stderr: human-readable in dev,
// JSON lines everywhere else.  An unknown level falls back to info.
func New(level string, dev bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if dev {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return build(w, level)
}

func build(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "moviestore").Logger()
}
