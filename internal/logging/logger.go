// Package logging provides structured logging for the transfer engines and CLI.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates a logger writing human-readable output to w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// Default returns the process-wide default logger.
// Transfer engines use this unless a caller injects its own logger.
func Default() zerolog.Logger {
	return log.Logger
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Stderr for logs; stdout stays clean for progress bars and command output.
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = New(os.Stderr)
}
