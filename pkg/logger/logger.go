package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Thin package-level façade over logrus used across the bridge.
// Provides Debug/Info/Warn/Error/Fatal variants and Init(level).

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init sets the global log level (case-insensitive: debug, info, warn,
// error, fatal). Call early during startup. Default level is Info.
func Init(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		log.SetLevel(logrus.FatalLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) { log.SetOutput(w) }

func Debugf(format string, v ...interface{}) { log.Debugf(format, v...) }
func Infof(format string, v ...interface{})  { log.Infof(format, v...) }
func Warnf(format string, v ...interface{})  { log.Warnf(format, v...) }
func Errorf(format string, v ...interface{}) { log.Errorf(format, v...) }
func Fatalf(format string, v ...interface{}) { log.Fatalf(format, v...) }

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { log.Debug(v) }
func Info(v string)  { log.Info(v) }
func Warn(v string)  { log.Warn(v) }
func Error(v string) { log.Error(v) }

// LevelString returns the current level as text.
func LevelString() string {
	switch log.GetLevel() {
	case logrus.DebugLevel:
		return "debug"
	case logrus.WarnLevel:
		return "warn"
	case logrus.ErrorLevel:
		return "error"
	case logrus.FatalLevel:
		return "fatal"
	default:
		return "info"
	}
}
