package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"silent", Silent},
		{"ERROR", Error},
		{" warn ", Warn},
		{"warning", Warn},
		{"info", Info},
		{"debug", Info},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewBackends(t *testing.T) {
	for _, backend := range []string{"", "zap", "zerolog", "logrus"} {
		l, err := New(backend, Config{LogLevel: Warn})
		require.NoError(t, err, backend)
		assert.NotNil(t, l)
	}

	_, err := New("syslog", Config{})
	assert.Error(t, err)
}

func TestPairs(t *testing.T) {
	got := pairs([]any{"model", "Hero", 3, "x", "dangling"})
	assert.Equal(t, [][2]any{{"model", "Hero"}, {"3", "x"}, {"extra", "dangling"}}, got)
}

func newZapBuffer(level zapcore.Level) (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		level,
	)
	return zap.New(core), &buf
}

func TestZapLogger_Levels(t *testing.T) {
	ctx := context.Background()
	zl, buf := newZapBuffer(zapcore.DebugLevel)
	l := NewZapLogger(zl, Config{LogLevel: Warn})

	l.Info(ctx, "declared", "model", "Hero")
	assert.Empty(t, buf.String(), "info is below warn")

	l.Warn(ctx, "swallowed", "model", "Hero", "issues", 2)
	out := buf.String()
	assert.Contains(t, out, `"msg":"swallowed"`)
	assert.Contains(t, out, `"model":"Hero"`)
	assert.Contains(t, out, `"issues":2`)

	buf.Reset()
	l.LogMode(Info).Info(ctx, "declared")
	assert.Contains(t, buf.String(), "declared")
}

func TestZapLogger_Trace(t *testing.T) {
	ctx := context.Background()
	zl, buf := newZapBuffer(zapcore.DebugLevel)
	l := NewZapLogger(zl, Config{LogLevel: Info})

	l.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT INTO hero", 1 }, nil)
	assert.Contains(t, buf.String(), `"sql":"INSERT INTO hero"`)
	assert.Contains(t, buf.String(), `"rows":1`)

	buf.Reset()
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", -1 }, errors.New("boom"))
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.NotContains(t, buf.String(), `"rows"`)

	buf.Reset()
	l.LogMode(Silent).Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, nil)
	assert.Empty(t, buf.String())
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf), Config{LogLevel: Info})

	l.Info(context.Background(), "declared", "model", "Team")
	assert.Contains(t, buf.String(), `"model":"Team"`)

	buf.Reset()
	l.LogMode(Error).Warn(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	lr := logrus.New()
	lr.SetOutput(&buf)
	lr.SetFormatter(&logrus.JSONFormatter{})
	l := NewLogrusLogger(lr, Config{LogLevel: Warn})

	l.Warn(context.Background(), "replaced", "class", "Hero")
	assert.Contains(t, buf.String(), `"class":"Hero"`)

	buf.Reset()
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "DELETE", 1 }, errors.New("fk"))
	assert.Contains(t, buf.String(), "fk")
}
