package internal

// Internal logging utility.

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	logLevel LogLevel
	logger   *logrus.Logger
	fields   logrus.Fields
}

type LogLevel int

const (
	// error levels that should almost always be printed
	LevelFatal LogLevel = iota // only errors that stop the program
	LevelError                 // error that does not need to stop execution

	// debugging levels, okay to disable
	LevelWarn // something may be wrong, but not necessarily an error
	LevelInfo // nothing wrong, informational only

	// Production code by default only shows warnings and above.
	LogLevelDefault = LevelWarn

	// min, max levels for setting print level
	LevelMin = LevelFatal
	LevelMax = LevelInfo
)

var levelToLogrus = []logrus.Level{
	logrus.FatalLevel,
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
}

// NewLogger returns a logger writing to stderr. The component name is
// attached to every entry.
func NewLogger(component string) *Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	logger.Level = levelToLogrus[LogLevelDefault]
	return &Logger{
		logLevel: LogLevelDefault,
		logger:   logger,
		fields:   logrus.Fields{"component": component},
	}
}

// SetLogLevel returns the old level
func (l *Logger) SetLogLevel(level LogLevel) LogLevel {
	if level < LevelMin || level > LevelMax {
		panic("trying to set invalid log level")
	}
	old := l.logLevel
	l.logLevel = level
	l.logger.SetLevel(levelToLogrus[level])
	return old
}

// SetLogLevelInt maps the public 0..3 scale onto internal levels, returning
// the old one. Anything above 3 means everything.
func (l *Logger) SetLogLevelInt(level int) int {
	var old LogLevel
	switch level {
	case 0:
		old = l.SetLogLevel(LevelFatal)
	case 1:
		old = l.SetLogLevel(LevelError)
	case 2:
		old = l.SetLogLevel(LevelWarn)
	default:
		old = l.SetLogLevel(LevelInfo)
	}
	return int(old)
}

func (l *Logger) entry() *logrus.Entry {
	return l.logger.WithFields(l.fields)
}

func (l *Logger) Info(v ...any)                 { l.entry().Info(fmt.Sprint(v...)) }
func (l *Logger) Infof(format string, v ...any) { l.entry().Infof(format, v...) }

func (l *Logger) Warn(v ...any)                 { l.entry().Warn(fmt.Sprint(v...)) }
func (l *Logger) Warnf(format string, v ...any) { l.entry().Warnf(format, v...) }

func (l *Logger) Error(v ...any)                 { l.entry().Error(fmt.Sprint(v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.entry().Errorf(format, v...) }

// WithField logs at info level with one extra structured field.
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.entry().WithField(key, value)
}
