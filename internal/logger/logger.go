package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Conf struct {
	Level string
	// File enables a rotated copy of the log next to stdout.
	File   string
	Output io.Writer
}

type Logger struct {
	l *logrus.Entry
}

func New(conf Conf) (*Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{}) //nolint:exhaustruct

	level := logrus.InfoLevel

	if conf.Level != "" {
		parsed, err := logrus.ParseLevel(conf.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", conf.Level, err)
		}

		level = parsed
	}

	base.SetLevel(level)

	var out io.Writer = os.Stdout
	if conf.Output != nil {
		out = conf.Output
	}

	if conf.File != "" {
		//nolint:exhaustruct
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    50, //nolint:gomnd
			MaxBackups: 5,  //nolint:gomnd
			MaxAge:     28, //nolint:gomnd
			Compress:   true,
		})
	}

	base.SetOutput(out)

	return &Logger{l: logrus.NewEntry(base)}, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)

	return &Logger{l: logrus.NewEntry(base)}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l: l.l.WithField(key, value)}
}

// Writer exposes the underlying output at error level, e.g. for http.Server.ErrorLog.
func (l *Logger) Writer() *io.PipeWriter {
	return l.l.WriterLevel(logrus.ErrorLevel)
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Errorf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.l.Warnf(format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Infof(format, v...)
}

func (l *Logger) LogDebugf(format string, v ...any) {
	l.l.Debugf(format, v...)
}
