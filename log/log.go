// Package log wraps logrus with context-aware helpers that stamp every line
// with the request id carried by the context.
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	logcontext "github.com/va6996/mensaman/context"
)

// Logger is the global logger instance. It writes to stderr because the
// stdio MCP transport owns stdout.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&CustomFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// CustomFormatter implements logrus.Formatter
type CustomFormatter struct {
	TimestampFormat string
}

// Format formats a log entry as [<time>] [LEVEL] [file:line] <message> [req:<id>] key=value...
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "[%s] ", entry.Time.Format(f.TimestampFormat))
	fmt.Fprintf(b, "[%s] ", strings.ToUpper(entry.Level.String()))

	if file, line := callerOutsideLogging(); file != "" {
		fmt.Fprintf(b, "[%s:%d] ", file, line)
	}

	b.WriteString(entry.Message)

	if requestID, ok := entry.Data["request_id"].(string); ok && requestID != "" {
		fmt.Fprintf(b, " [req:%s]", requestID)
	}

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != "request_id" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(b, " %s=%v", key, entry.Data[key])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// callerOutsideLogging walks the stack past logrus, this package and the runtime.
func callerOutsideLogging() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		skip := strings.Contains(frame.File, "github.com/sirupsen/logrus") ||
			strings.HasSuffix(frame.File, "log/log.go") ||
			strings.Contains(frame.File, "runtime/")
		if !skip {
			parts := strings.Split(frame.File, "/")
			return parts[len(parts)-1], frame.Line
		}
		if !more {
			return "", 0
		}
	}
}

func entry(ctx context.Context) *logrus.Entry {
	return Logger.WithField("request_id", logcontext.RequestIDFromContext(ctx))
}

// Infof logs formatted message at info level
func Infof(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Infof(format, args...)
}

// Debugf logs formatted message at debug level
func Debugf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Debugf(format, args...)
}

// Warnf logs formatted message at warning level
func Warnf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Warnf(format, args...)
}

// Errorf logs formatted message at error level
func Errorf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Errorf(format, args...)
}

// Fatalf logs formatted message at fatal level and exits
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Fatalf(format, args...)
}

// Configure sets the level by name ("debug", "info", ...) and, when out is not nil, the output.
func Configure(level string, out io.Writer) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		Logger.SetLevel(lvl)
	}
	if out != nil {
		Logger.SetOutput(out)
	}
	return nil
}

// SetLevel sets the global log level
func SetLevel(level logrus.Level) {
	Logger.SetLevel(level)
}

// WithField creates a logger with predefined field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}
