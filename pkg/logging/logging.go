package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/sirupsen/logrus"
)

// Logger is the command level logger. Library code takes a logrus logger
// through its config instead.
var Logger *slog.Logger

func init() {
	Logger, _ = NewSlog(os.Stderr, "info", false)
}

// New returns a logrus logger writing to stderr. An empty level means info.
func New(level string, json bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if level == "" {
		level = logrus.InfoLevel.String()
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(parsed)

	if json {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return logger, nil
}

// NewSlog returns a slog logger with a colored tint handler, or a JSON
// handler when json is set. Levels use the logrus names so one config value
// drives both loggers.
func NewSlog(w io.Writer, level string, json bool) (*slog.Logger, error) {
	parsed, err := slogLevel(level)
	if err != nil {
		return nil, err
	}

	if json {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parsed})), nil
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      parsed,
		TimeFormat: time.RFC3339,
		NoColor:    w != os.Stderr && w != os.Stdout,
	})
	return slog.New(handler), nil
}

func slogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "fatal", "panic":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("parse log level: unknown level %q", level)
}

// OrDefault returns logger, or a fresh logrus logger when it is nil.
func OrDefault(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return logrus.New()
	}
	return logger
}
