package logger

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements Interface using logrus
type LogrusLogger struct {
	Logger        *logrus.Logger
	LogLevel      LogLevel
	SlowThreshold time.Duration
}

// NewLogrusLogger creates a new logger using logrus
func NewLogrusLogger(logger *logrus.Logger, config Config) Interface {
	return &LogrusLogger{
		Logger:        logger,
		LogLevel:      config.LogLevel,
		SlowThreshold: config.SlowThreshold,
	}
}

// NewLogrusLoggerWithConfig writes text output to stderr.
func NewLogrusLoggerWithConfig(config Config) Interface {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(LogrusLevel(config.LogLevel))
	return NewLogrusLogger(l, config)
}

// LogMode sets the log level
func (l *LogrusLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *LogrusLogger) entry(ctx context.Context, data []any) *logrus.Entry {
	fields := logrus.Fields{"file": fileWithLineNum()}
	for _, kv := range pairs(data) {
		fields[kv[0].(string)] = kv[1]
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return l.Logger.WithContext(ctx).WithFields(fields)
}

// Info logs info messages
func (l *LogrusLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Info {
		l.entry(ctx, data).Info(msg)
	}
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Warn {
		l.entry(ctx, data).Warn(msg)
	}
}

// Error logs error messages
func (l *LogrusLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Error {
		l.entry(ctx, data).Error(msg)
	}
}

// Trace logs SQL execution details
func (l *LogrusLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed, duration := elapsedMillis(begin)
	sql, rows := fc()

	data := []any{"duration", duration, "sql", sql}
	if rows != -1 {
		data = append(data, "rows", rows)
	}

	switch {
	case err != nil && l.LogLevel >= Error:
		l.entry(ctx, data).WithError(err).Error("SQL executed")
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		l.entry(ctx, append(data, "slow_threshold", l.SlowThreshold.String())).Warn("SLOW SQL executed")
	case l.LogLevel >= Info:
		l.entry(ctx, data).Info("SQL executed")
	}
}

// LogrusLevel converts LogLevel to logrus.Level
func LogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case Silent:
		return logrus.PanicLevel
	case Error:
		return logrus.ErrorLevel
	case Warn:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
