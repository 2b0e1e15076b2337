package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GetLogger returns a logger tagged with the given component name.
func GetLogger(component string) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if os.Getenv("DEBUG") != "" {
		// console writer is inefficient. use it for debug only
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05"})
	}

	logger := log.With().
		Str("src", component).
		Logger()

	return &logger
}
