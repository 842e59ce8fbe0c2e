package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Interface using zerolog
type ZerologLogger struct {
	Logger        zerolog.Logger
	LogLevel      LogLevel
	SlowThreshold time.Duration
}

// NewZerologLogger creates a new logger using zerolog
func NewZerologLogger(logger zerolog.Logger, config Config) Interface {
	return &ZerologLogger{
		Logger:        logger,
		LogLevel:      config.LogLevel,
		SlowThreshold: config.SlowThreshold,
	}
}

// NewZerologLoggerWithConfig writes console output to stderr.
func NewZerologLoggerWithConfig(config Config) Interface {
	consoleWriter := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
		w.TimeFormat = time.RFC3339
	})
	logger := zerolog.New(consoleWriter).
		Level(ZerologLevel(config.LogLevel)).
		With().
		Timestamp().
		Logger()

	return NewZerologLogger(logger, config)
}

// LogMode sets the log level
func (l *ZerologLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *ZerologLogger) emit(ctx context.Context, event *zerolog.Event, msg string, data []any) {
	event = event.Str("file", fileWithLineNum())
	for _, kv := range pairs(data) {
		event = event.Interface(kv[0].(string), kv[1])
	}
	if ctx != nil {
		event = event.Ctx(ctx)
	}
	event.Msg(msg)
}

// Info logs info messages
func (l *ZerologLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Info {
		l.emit(ctx, l.Logger.Info(), msg, data)
	}
}

// Warn logs warning messages
func (l *ZerologLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Warn {
		l.emit(ctx, l.Logger.Warn(), msg, data)
	}
}

// Error logs error messages
func (l *ZerologLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Error {
		l.emit(ctx, l.Logger.Error(), msg, data)
	}
}

// Trace logs SQL execution details
func (l *ZerologLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed, duration := elapsedMillis(begin)
	sql, rows := fc()

	var event *zerolog.Event
	switch {
	case err != nil && l.LogLevel >= Error:
		event = l.Logger.Error().Err(err)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		event = l.Logger.Warn().Str("slow_threshold", l.SlowThreshold.String())
	case l.LogLevel >= Info:
		event = l.Logger.Info()
	default:
		return
	}

	event = event.
		Str("file", fileWithLineNum()).
		Str("duration", duration).
		Str("sql", sql)
	if rows != -1 {
		event = event.Int64("rows", rows)
	}
	if ctx != nil {
		event = event.Ctx(ctx)
	}
	event.Msg("SQL executed")
}

// ZerologLevel converts LogLevel to zerolog.Level
func ZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case Silent:
		return zerolog.Disabled
	case Error:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
