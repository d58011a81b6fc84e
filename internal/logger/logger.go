package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger tagged with the process name. LOG_LEVEL selects the level.
func New(service string) *logrus.Entry {
	return NewWithOutput(service, os.Stdout)
}

func NewWithOutput(service string, w io.Writer) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	l.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))
	return l.WithField("service", service)
}

func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
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

// Discard is a logger for tests and optional dependencies.
func Discard() *logrus.Entry {
	return NewWithOutput("discard", io.Discard)
}
