// Package logging configures the bridge's process-wide logger: level from
// LOG_LEVEL (default info), written to both stderr and spacebar_bridge.log.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// Init configures the shared logger. logFile is the path to append logs to
// (e.g. "spacebar_bridge.log"); levelOverride, if non-empty, takes
// precedence over LOG_LEVEL.
func Init(logFile, levelOverride string) error {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05",
	})

	level := levelOverride
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	return nil
}

// Logger returns the shared logger instance.
func Logger() *logrus.Logger { return log }

// WithField is a convenience wrapper for per-session/per-component loggers,
// e.g. logging.WithField("endpoint", "Discord").
func WithField(key string, value any) *logrus.Entry {
	return log.WithField(key, value)
}

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
