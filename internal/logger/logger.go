// Package logger provides JSON structured logging using zerolog
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string `toml:"level"`
	Debug      bool   `toml:"debug"`
	Output     string `toml:"output"`
	TimeFormat string `toml:"time_format" split_words:"true"`
}

// New builds a logger from cfg. Output is "stdout", "stderr" or a file
// path opened for append. The returned closer releases the file, if any.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	output, closer, err := openOutput(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			_ = closer.Close()
			return zerolog.Nop(), nopCloser{}, err
		}
	}

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "stereoguard").
		Logger()

	return log, closer, nil
}

// WithComponent returns a child logger tagged with component.
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewTestLogger creates a no-op logger for testing.
func NewTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch strings.TrimSpace(output) {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", output, err)
	}
	return file, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
