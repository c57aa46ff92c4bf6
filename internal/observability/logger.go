package observability

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface the rest of the module depends on.
// Fields added with WithField accumulate on the returned logger, so a
// request-scoped entry can travel down the call stack without rebinding.
type Logger interface {
	Info(args ...interface{})
	Error(args ...interface{})
	Debug(args ...interface{})
	Warn(args ...interface{})
	WithField(key string, value interface{}) Logger
}

type jsonLogger struct {
	entry *logrus.Entry
}

// NewLogger emits JSON lines on stdout. LOG_LEVEL overrides the default
// logrus level when set to a valid level name.
func NewLogger() Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		base.SetLevel(lvl)
	}
	return &jsonLogger{entry: logrus.NewEntry(base)}
}

func (l *jsonLogger) Info(args ...interface{}) {
	l.entry.Info(args...)
}

func (l *jsonLogger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *jsonLogger) Debug(args ...interface{}) {
	l.entry.Debug(args...)
}

func (l *jsonLogger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

func (l *jsonLogger) WithField(key string, value interface{}) Logger {
	return &jsonLogger{entry: l.entry.WithField(key, value)}
}
