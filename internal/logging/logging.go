package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"fitlog-go/internal/config"
)

type Logger struct {
	entry *logrus.Entry
}

func New(level string) *Logger {
	return NewWithConfig(config.LogConfig{Level: level})
}

// NewWithConfig builds a logger writing to stdout, or to a rotated file when
// cfg.File is set.
func NewWithConfig(cfg config.LogConfig) *Logger {
	base := logrus.New()
	base.SetLevel(parseLevel(cfg.Level))
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	var out io.Writer = os.Stdout
	if f := strings.TrimSpace(cfg.File); f != "" {
		out = &lumberjack.Logger{
			Filename:   f,
			MaxSize:    orDefault(cfg.MaxSizeMB, 20),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			Compress:   true,
		}
	}
	base.SetOutput(out)
	return &Logger{entry: logrus.NewEntry(base)}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Logrus() *logrus.Logger {
	return l.entry.Logger
}

func (l *Logger) Debugf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.entry.Errorf(format, args...)
}

func parseLevel(level string) logrus.Level {
	lv, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
