package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	disabled = false
	logger   = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}

// Disable turns off all logging
func Disable() {
	disabled = true
}

// Enable turns logging back on
func Enable() {
	disabled = false
}

// SetVerbose switches between info and debug output
func SetVerbose(v bool) {
	if v {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects log output. The MCP server uses this to keep stdout
// free for the protocol stream.
func SetOutput(w io.Writer) {
	lvl := logger.GetLevel()
	logger = newLogger(w).Level(lvl)
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled {
		logger.Info().Msgf(format, v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Error().Msgf(format, v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Warn().Msgf(format, v...)
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if !disabled {
		logger.Debug().Msgf(format, v...)
	}
}

// Logger is a request-scoped logger carrying a component field
type Logger struct {
	component string
}

// WithComponent returns a Logger that tags every line with the component name
func WithComponent(component string) Logger {
	return Logger{component: component}
}

func (l Logger) event(e *zerolog.Event) *zerolog.Event {
	if l.component != "" {
		return e.Str("component", l.component)
	}
	return e
}

// Infof logs a formatted info message
func (l Logger) Infof(format string, v ...any) {
	if !disabled {
		l.event(logger.Info()).Msgf(format, v...)
	}
}

// Errorf logs a formatted error message
func (l Logger) Errorf(format string, v ...any) {
	if !disabled {
		l.event(logger.Error()).Msgf(format, v...)
	}
}

// Debugf logs a formatted debug message
func (l Logger) Debugf(format string, v ...any) {
	if !disabled {
		l.event(logger.Debug()).Msgf(format, v...)
	}
}
