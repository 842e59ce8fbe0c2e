// Package logger is the logging surface used by model declaration, instance
// construction and the session. One Interface, three backends: zap (the
// default), zerolog and logrus.
//
// Message data is passed as alternating key/value pairs:
//
//	log.Warn(ctx, "validation issues swallowed", "model", "Hero", "issues", 2)
package logger

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// LogLevel log level
type LogLevel int

const (
	// Silent silent log level
	Silent LogLevel = iota + 1
	// Error error log level
	Error
	// Warn warn log level
	Warn
	// Info info log level
	Info
)

// String returns the lower-case level name.
func (l LogLevel) String() string {
	switch l {
	case Silent:
		return "silent"
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return Silent, nil
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warn, nil
	case "info", "debug":
		return Info, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Config logger config
type Config struct {
	LogLevel      LogLevel
	SlowThreshold time.Duration
	// ParameterizedQueries drops statement arguments from Trace output.
	ParameterizedQueries bool
}

// Interface logger interface
type Interface interface {
	LogMode(LogLevel) Interface
	Info(ctx context.Context, msg string, data ...any)
	Warn(ctx context.Context, msg string, data ...any)
	Error(ctx context.Context, msg string, data ...any)
	Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error)
}

// Backend names accepted by New.
const (
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
	BackendLogrus  = "logrus"
)

var (
	// Default is the logger every registry starts with.
	Default = NewZapLoggerWithConfig(Config{LogLevel: Warn, SlowThreshold: 200 * time.Millisecond})
	// Discard drops everything.
	Discard = NewZapLoggerWithConfig(Config{LogLevel: Silent})
)

// New builds a logger for a backend name. An empty name selects zap.
func New(backend string, config Config) (Interface, error) {
	switch strings.ToLower(backend) {
	case "", BackendZap:
		return NewZapLoggerWithConfig(config), nil
	case BackendZerolog:
		return NewZerologLoggerWithConfig(config), nil
	case BackendLogrus:
		return NewLogrusLoggerWithConfig(config), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", backend)
}

// pairs turns key/value data into a key -> value list. An odd trailing value
// is reported under "extra".
func pairs(data []any) [][2]any {
	out := make([][2]any, 0, (len(data)+1)/2)
	for i := 0; i < len(data); i += 2 {
		if i+1 >= len(data) {
			out = append(out, [2]any{"extra", data[i]})
			break
		}
		key, ok := data[i].(string)
		if !ok {
			key = fmt.Sprint(data[i])
		}
		out = append(out, [2]any{key, data[i+1]})
	}
	return out
}

var sourceDir string

func init() {
	_, file, _, _ := runtime.Caller(0)
	// the module root is one directory above this package
	sourceDir = filepath.ToSlash(filepath.Dir(filepath.Dir(file))) + "/"
}

// fileWithLineNum returns the first caller outside this module, or a test file.
func fileWithLineNum() string {
	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if ok && (!strings.HasPrefix(file, sourceDir) || strings.HasSuffix(file, "_test.go")) {
			return file + ":" + strconv.FormatInt(int64(line), 10)
		}
	}
	return ""
}

func elapsedMillis(begin time.Time) (time.Duration, string) {
	elapsed := time.Since(begin)
	return elapsed, fmt.Sprintf("%.3fms", float64(elapsed.Nanoseconds())/1e6)
}
