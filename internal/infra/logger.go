package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the application-wide structured logger type.
type Logger = zerolog.Logger

// NewLogger builds a zerolog logger. In development it writes
// human-readable console output; elsewhere it emits JSON.
func NewLogger(appEnv string) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logger zerolog.Logger
	if appEnv == "development" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}
