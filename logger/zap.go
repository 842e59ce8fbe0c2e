package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements Interface using zap
type ZapLogger struct {
	Logger        *zap.Logger
	LogLevel      LogLevel
	SlowThreshold time.Duration
}

// NewZapLogger creates a new logger using zap
func NewZapLogger(logger *zap.Logger, config Config) Interface {
	return &ZapLogger{
		Logger:        logger,
		LogLevel:      config.LogLevel,
		SlowThreshold: config.SlowThreshold,
	}
}

// NewZapLoggerWithConfig builds a production zap logger at the configured level,
// falling back to a no-op logger when the build fails.
func NewZapLoggerWithConfig(config Config, zapConfig ...zap.Config) Interface {
	var zapCfg zap.Config
	if len(zapConfig) > 0 {
		zapCfg = zapConfig[0]
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(ZapLevel(config.LogLevel))
	}

	logger, err := zapCfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return NewZapLogger(logger, config)
}

// LogMode sets the log level
func (l *ZapLogger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *ZapLogger) fields(data []any) []zap.Field {
	fields := []zap.Field{zap.String("file", fileWithLineNum())}
	for _, kv := range pairs(data) {
		fields = append(fields, zap.Any(kv[0].(string), kv[1]))
	}
	return fields
}

// Info logs info messages
func (l *ZapLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Info {
		l.Logger.Info(msg, l.fields(data)...)
	}
}

// Warn logs warning messages
func (l *ZapLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Warn {
		l.Logger.Warn(msg, l.fields(data)...)
	}
}

// Error logs error messages
func (l *ZapLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= Error {
		l.Logger.Error(msg, l.fields(data)...)
	}
}

// Trace logs SQL execution details
func (l *ZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed, duration := elapsedMillis(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.String("file", fileWithLineNum()),
		zap.String("duration", duration),
		zap.String("sql", sql),
	}
	if rows != -1 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	switch {
	case err != nil && l.LogLevel >= Error:
		fields = append(fields, zap.Error(err))
		l.Logger.Error("SQL executed", fields...)
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		fields = append(fields, zap.String("slow_threshold", l.SlowThreshold.String()))
		l.Logger.Warn("SLOW SQL executed", fields...)
	case l.LogLevel >= Info:
		l.Logger.Info("SQL executed", fields...)
	}
}

// ZapLevel converts LogLevel to zapcore.Level
func ZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case Silent:
		return zapcore.DPanicLevel
	case Error:
		return zapcore.ErrorLevel
	case Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
