// Package logging provides the leveled logger threaded through every
// component of the pipeline. Verbosity is carried by the Logger value
// itself, not by process-global state.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

type Config struct {
	Level  Level
	Format string
	Output io.Writer // defaults to os.Stderr
}

type Logger struct {
	logger zerolog.Logger
	level  Level
}

func NewLogger(c Config) *Logger {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	if c.Format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return &Logger{
		logger: zerolog.New(out).Level(zerologLevel(c.Level)).With().Timestamp().Logger(),
		level:  c.Level,
	}
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

func (l *Logger) Level() Level {
	return l.level
}

// WithName returns a copy of the logger with a component name attached to
// every event.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger(), level: l.level}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
