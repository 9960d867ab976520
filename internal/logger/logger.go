package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// SetDebugMode enables/disables debug logging.
func SetDebugMode(enabled bool) {
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// IsDebugMode returns current debug mode status.
func IsDebugMode() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}

// Debug logs a formatted debug message.
func Debug(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}

// Info logs a formatted info message.
func Info(format string, args ...interface{}) {
	log.Info().Msgf(format, args...)
}

// Err logs an error with a message describing the failed operation.
func Err(err error, format string, args ...interface{}) {
	log.Error().Err(err).Msgf(format, args...)
}
