package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the JSON logger shared by every component. level falls back to LOG_LEVEL and then
// to info.
func New(serviceName, level string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)
	log.SetLevel(ParseLevel(level))
	return log.WithField("service", serviceName)
}

// ParseLevel maps a level name to logrus, consulting LOG_LEVEL when raw is empty.
func ParseLevel(raw string) logrus.Level {
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	switch strings.ToLower(raw) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component tags entries with the emitting component.
func Component(log *logrus.Entry, name string) *logrus.Entry {
	return log.WithField("component", name)
}
