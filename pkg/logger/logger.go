// Package logger provides the process-wide structured logger. All packages
// log through the package-level functions so output format and level are
// controlled in one place.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger()

// SetLevel adjusts the minimum level by name (debug, info, warn, error).
// Unknown names fall back to info. Meant to be called once at startup,
// before any goroutines log.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log = log.Level(lvl)
}

func Debug(msg string) {
	log.Debug().Msg(msg)
}

func Info(msg string) {
	log.Info().Msg(msg)
}

func Warn(msg string) {
	log.Warn().Msg(msg)
}

func Error(msg string) {
	log.Error().Msg(msg)
}

// With returns a scoped zerolog logger carrying a component field, for the
// rare spots that need structured context beyond a formatted message.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
