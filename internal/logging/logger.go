// Package logging configures the process-wide zerolog logger and hands out
// component-scoped children.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a textual log level as it appears in configuration.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config represents logger configuration.
type Config struct {
	// Level is the minimum level that is written.
	Level Level
	// Pretty enables human-readable console output instead of JSON.
	Pretty bool
	// Output is the destination writer (defaults to os.Stdout).
	Output io.Writer
}

var (
	mu            sync.RWMutex
	defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Configure replaces the default logger according to cfg.
func Configure(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	writer := cfg.Output
	if cfg.Pretty {
		writer = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger()

	mu.Lock()
	defaultLogger = logger
	mu.Unlock()
	log.Logger = logger
}

func parseLevel(l Level) zerolog.Level {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current default logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// With returns a child of the default logger tagged with component.
func With(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() zerolog.Logger { return zerolog.Nop() }
