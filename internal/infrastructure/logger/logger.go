package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a new zerolog logger with the given level
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	logLevel := parseLogLevel(level)

	return zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Logger()
}

// parseLogLevel converts string level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
