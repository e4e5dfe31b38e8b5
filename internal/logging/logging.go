package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/servicedesk/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger and installs it as the zerolog global.
// DEV gets a human readable console writer, every other environment gets JSON.
func New(cfg config.EnvConfig) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.GetEnv() == "DEV" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	logger := NewWithWriter(out, cfg.GetLogLevel()).
		With().Str("app", cfg.GetAppName()).Logger()
	log.Logger = logger
	return logger
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
