package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
)

// New creates a zerolog.Logger configured for the widget service.
func New(cfg *config.Config) zerolog.Logger {
	return NewWithOutput(os.Stdout, cfg.ServiceName, cfg.Environment, cfg.LogLevel)
}

// NewWithOutput creates a console logger writing to out.
func NewWithOutput(out io.Writer, service, environment, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Str("environment", environment).
		Logger().
		Level(ParseLevel(level))
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
