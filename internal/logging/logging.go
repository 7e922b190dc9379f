// Package logging sets up the process-wide zerolog logger, the same way
// the teacher's cmd/service/main.go does it.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/relaynet/txrelay/internal/config"
)

// New configures a zerolog.Logger per cfg and sets the global level.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
