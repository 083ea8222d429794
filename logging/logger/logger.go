// Package logger wraps logrus with context-aware, structured logging.
// Entries carry the request trace id and application version, fields are
// passed as alternating key/value arguments, and configured search hooks
// mirror entries to external indexes.
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ncobase/spacearc/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// VersionKey is the log field carrying the application version.
const VersionKey = "version"

// Logger wraps a logrus logger with output and hook management.
type Logger struct {
	*logrus.Logger
	version      string
	logFile      *os.File
	logPath      string
	indexName    string
	desensitizer *Desensitizer
	rotateStop   chan struct{}
}

var (
	stdLogger *Logger
	once      sync.Once
)

// StdLogger returns the process-wide logger instance.
func StdLogger() *Logger {
	once.Do(func() {
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		stdLogger = &Logger{Logger: l}
	})
	return stdLogger
}

// New configures the standard logger and returns a cleanup function
// that stops rotation and closes any open log file.
func New(c *config.Config) (func(), error) {
	return StdLogger().Init(c)
}

// SetVersion attaches the build version to every entry.
func (l *Logger) SetVersion(version string) {
	l.version = version
}

// Init applies configuration to the logger.
func (l *Logger) Init(c *config.Config) (func(), error) {
	cleanup := func() {
		l.stopRotation()
		l.closeLogFile()
	}

	if c == nil {
		return cleanup, nil
	}

	level := logrus.InfoLevel
	if c.Level >= int(logrus.PanicLevel) && c.Level <= int(logrus.TraceLevel) {
		level = logrus.Level(c.Level)
	}
	l.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	switch strings.ToLower(c.Output) {
	case "file":
		if err := l.setupLogFile(c); err != nil {
			return cleanup, err
		}
		l.startRotation()
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		l.SetOutput(os.Stdout)
	}

	l.indexName = c.IndexName
	if c.Desensitization != nil && c.Desensitization.Enabled {
		l.desensitizer = NewDesensitizer(c.Desensitization)
	}

	if err := l.initSearchHooks(c); err != nil {
		return cleanup, err
	}

	return cleanup, nil
}

func (l *Logger) setupLogFile(c *config.Config) error {
	dir := c.Path
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	name := c.OutputFile
	if name == "" {
		name = "app.log"
	}
	l.logPath = filepath.Join(dir, name)
	return l.openLogFile()
}

func (l *Logger) openLogFile() error {
	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.closeLogFile()
	l.logFile = f
	l.SetOutput(f)
	return nil
}

func (l *Logger) closeLogFile() {
	if l.logFile != nil {
		_ = l.logFile.Close()
		l.logFile = nil
	}
}

// rotateLog renames the active log file with a date suffix and reopens
// a fresh one at the original path.
func (l *Logger) rotateLog() {
	if l.logPath == "" {
		return
	}
	rotated := fmt.Sprintf("%s.%s.log", strings.TrimSuffix(l.logPath, ".log"), time.Now().Format("2006-01-02"))
	l.closeLogFile()
	if err := os.Rename(l.logPath, rotated); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
	}
	if err := l.openLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to reopen log file: %v\n", err)
	}
}

func (l *Logger) startRotation() {
	if l.rotateStop != nil {
		return
	}
	l.rotateStop = make(chan struct{})
	go func(stop chan struct{}) {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.rotateLog()
			case <-stop:
				return
			}
		}
	}(l.rotateStop)
}

func (l *Logger) stopRotation() {
	if l.rotateStop != nil {
		close(l.rotateStop)
		l.rotateStop = nil
	}
}

// AddHook registers a hook unless one of the same type is present.
func (l *Logger) AddHook(hook logrus.Hook) {
	if l.hookExists(hook) {
		return
	}
	l.Logger.AddHook(hook)
}

func (l *Logger) hookExists(hook logrus.Hook) bool {
	for _, levelHooks := range l.Hooks {
		for _, h := range levelHooks {
			if reflect.TypeOf(h) == reflect.TypeOf(hook) {
				return true
			}
		}
	}
	return false
}

func (l *Logger) entryFromContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{}
	if traceID := getTraceID(ctx); traceID != "" {
		fields[traceKey] = traceID
	}
	if l.version != "" {
		fields[VersionKey] = l.version
	}
	return l.WithFields(fields)
}

// fieldsFromKVs converts alternating key/value arguments into fields.
// A trailing key without a value lands under "extra".
func fieldsFromKVs(kvs []any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		fields[key] = kvs[i+1]
	}
	if len(kvs)%2 == 1 {
		fields["extra"] = kvs[len(kvs)-1]
	}
	return fields
}

func (l *Logger) logKV(ctx context.Context, level logrus.Level, msg string, kvs []any) {
	if !l.IsLevelEnabled(level) {
		return
	}
	fields := fieldsFromKVs(kvs)
	if l.desensitizer != nil {
		fields = l.desensitizer.DesensitizeFields(fields)
	}
	l.entryFromContext(ctx).WithFields(fields).Log(level, msg)
}

// Trace logs a message at trace level with key/value fields.
func (l *Logger) Trace(ctx context.Context, msg string, kvs ...any) {
	l.logKV(ctx, logrus.TraceLevel, msg, kvs)
}

// Debug logs a message at debug level with key/value fields.
func (l *Logger) Debug(ctx context.Context, msg string, kvs ...any) {
	l.logKV(ctx, logrus.DebugLevel, msg, kvs)
}

// Info logs a message at info level with key/value fields.
func (l *Logger) Info(ctx context.Context, msg string, kvs ...any) {
	l.logKV(ctx, logrus.InfoLevel, msg, kvs)
}

// Warn logs a message at warn level with key/value fields.
func (l *Logger) Warn(ctx context.Context, msg string, kvs ...any) {
	l.logKV(ctx, logrus.WarnLevel, msg, kvs)
}

// Error logs a message at error level with key/value fields.
func (l *Logger) Error(ctx context.Context, msg string, kvs ...any) {
	l.logKV(ctx, logrus.ErrorLevel, msg, kvs)
}

// Fatal logs a message at fatal level with key/value fields, then exits.
func (l *Logger) Fatal(ctx context.Context, msg string, kvs ...any) {
	fields := fieldsFromKVs(kvs)
	if l.desensitizer != nil {
		fields = l.desensitizer.DesensitizeFields(fields)
	}
	l.entryFromContext(ctx).WithFields(fields).Fatal(msg)
}

// Panic logs a message at panic level with key/value fields, then panics.
func (l *Logger) Panic(ctx context.Context, msg string, kvs ...any) {
	fields := fieldsFromKVs(kvs)
	if l.desensitizer != nil {
		fields = l.desensitizer.DesensitizeFields(fields)
	}
	l.entryFromContext(ctx).WithFields(fields).Panic(msg)
}

// Tracef logs a formatted message at trace level.
func (l *Logger) Tracef(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Tracef(format, args...)
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Debugf(format, args...)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Infof(format, args...)
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Warnf(format, args...)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Errorf(format, args...)
}

// Fatalf logs a formatted message at fatal level, then exits.
func (l *Logger) Fatalf(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Fatalf(format, args...)
}

// Panicf logs a formatted message at panic level, then panics.
func (l *Logger) Panicf(ctx context.Context, format string, args ...any) {
	l.entryFromContext(ctx).Panicf(format, args...)
}
