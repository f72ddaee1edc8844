// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log = zerolog.New(consoleWriter(os.Stdout)).With().Timestamp().Logger()
}

func consoleWriter(w io.Writer) io.Writer {
	if os.Getenv("LOG_FORMAT") == "json" {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
}

// SetLevel adjusts the global minimum log level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func Debugf(format string, args ...interface{}) { log.Debug().Msgf(format, args...) }
func Infof(format string, args ...interface{})  { log.Info().Msgf(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warn().Msgf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Error().Msgf(format, args...) }
func Fatalf(format string, args ...interface{}) { log.Fatal().Msgf(format, args...) }

// With returns a child logger carrying the given component name, for
// packages that want a tagged sub-logger (e.g. logger.With("risk")).
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
