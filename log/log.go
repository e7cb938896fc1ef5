package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// LogLevelDebug is the most verbose level.
	LogLevelDebug = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo = "info"
	// LogLevelWarn only shows warnings and errors.
	LogLevelWarn = "warn"
	// LogLevelError only shows errors.
	LogLevelError = "error"

	// logTestWriterName is the output name that makes Init write to
	// logTestWriter, only used from tests.
	logTestWriterName = "log_test_writer"
)

var (
	logger atomic.Pointer[zerolog.Logger]
	level  atomic.Value

	// logTestWriter is the writer used when Init is called with
	// logTestWriterName as output.
	logTestWriter io.Writer = io.Discard

	// panicOnInvalidChars makes the logger panic when a log line contains
	// invalid UTF-8, helps to catch raw bytes passed to %s verbs.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

func init() {
	l := LogLevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		l = envLevel
	}
	Init(l, "stderr", nil)
}

// Init (re)configures the package logger. The output can be "stdout",
// "stderr" or a file path. If errorOutput is not nil, every log line with
// level error or higher is also written there.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339Nano}
	case "stderr":
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano}
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %s: %v", output, err))
		}
		out = f
	}
	if panicOnInvalidChars {
		out = &invalidCharChecker{w: out}
	}
	writers := []io.Writer{out}
	if errorOutput != nil {
		writers = append(writers, &errorLevelWriter{w: errorOutput})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	zl = zl.Level(parseLevel(logLevel))
	logger.Store(&zl)
	level.Store(logLevel)
}

func parseLevel(l string) zerolog.Level {
	switch strings.ToLower(l) {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		panic(fmt.Sprintf("invalid log level: %q", l))
	}
}

// Level returns the current log level.
func Level() string {
	return level.Load().(string)
}

// Logger returns the underlying zerolog logger, useful to plug it into
// third party libraries that log through zerolog.
func Logger() *zerolog.Logger {
	return logger.Load()
}

// errorLevelWriter only forwards lines at error level or above.
type errorLevelWriter struct {
	w io.Writer
}

func (e *errorLevelWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (e *errorLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < zerolog.ErrorLevel {
		return len(p), nil
	}
	return e.w.Write(p)
}

type invalidCharChecker struct {
	w io.Writer
}

func (c *invalidCharChecker) Write(p []byte) (int, error) {
	if !utf8.Valid(p) || bytes.ContainsRune(p, utf8.RuneError) || bytes.Contains(p, []byte(`\ufffd`)) {
		panic(fmt.Sprintf("log line contains invalid characters: %q", p))
	}
	return c.w.Write(p)
}

func keysAndValues(e *zerolog.Event, kvs ...any) *zerolog.Event {
	for i := 0; i < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		if i+1 >= len(kvs) {
			e = e.Interface(key, nil)
			break
		}
		e = e.Interface(key, kvs[i+1])
	}
	return e
}

// Debug sends a debug level log message
func Debug(args ...any) {
	Logger().Debug().Msg(fmt.Sprint(args...))
}

// Info sends an info level log message
func Info(args ...any) {
	Logger().Info().Msg(fmt.Sprint(args...))
}

// Warn sends a warn level log message
func Warn(args ...any) {
	Logger().Warn().Msg(fmt.Sprint(args...))
}

// Error sends an error level log message
func Error(args ...any) {
	Logger().Error().Msg(fmt.Sprint(args...))
}

// Fatal sends a fatal level log message and exits
func Fatal(args ...any) {
	Logger().Fatal().Msg(fmt.Sprint(args...))
}

// Debugf sends a formatted debug level log message
func Debugf(template string, args ...any) {
	Logger().Debug().Msgf(template, args...)
}

// Infof sends a formatted info level log message
func Infof(template string, args ...any) {
	Logger().Info().Msgf(template, args...)
}

// Warnf sends a formatted warn level log message
func Warnf(template string, args ...any) {
	Logger().Warn().Msgf(template, args...)
}

// Errorf sends a formatted error level log message
func Errorf(template string, args ...any) {
	Logger().Error().Msgf(template, args...)
}

// Fatalf sends a formatted fatal level log message and exits
func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template, args...)
}

// Debugw sends a debug level log message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	keysAndValues(Logger().Debug(), keyvalues...).Msg(msg)
}

// Infow sends an info level log message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	keysAndValues(Logger().Info(), keyvalues...).Msg(msg)
}

// Warnw sends a warning level log message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	keysAndValues(Logger().Warn(), keyvalues...).Msg(msg)
}

// Errorw sends an error level log message with a special format for errors.
func Errorw(err error, msg string) {
	Logger().Error().Err(err).Msg(msg)
}
