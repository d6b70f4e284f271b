package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), recorded
}

func invoiceQuery() (string, int64) {
	return "SELECT * FROM invoices WHERE tenant_id = $1", 3
}

func TestNewGormLogger(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	assert.Equal(t, 200*time.Millisecond, gl.SlowThreshold)
	assert.True(t, gl.SkipRecordNotFound)

	var _ gormlogger.Interface = gl
}

func TestGormLoggerLogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	quiet := gl.LogMode(gormlogger.Silent)

	// The original logger keeps its level
	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, gormlogger.Silent, quiet.(*GormLogger).level)
}

func TestGormLoggerLevelGating(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "suppressed at warn level")
	assert.Empty(t, recorded.All())

	gl.Warn(ctx, "deprecated join on %s", "payments")
	gl.Error(ctx, "connection lost")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "payments")
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGormLoggerTrace(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), invoiceQuery, errors.New("deadlock detected"))

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL Error", entries[0].Message)
		assert.Contains(t, entries[0].ContextMap()["sql"], "FROM invoices")
	})

	t.Run("record not found suppressed", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), invoiceQuery, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("record not found logged when not suppressed", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		gl.SkipRecordNotFound = false

		gl.Trace(context.Background(), time.Now(), invoiceQuery, gormlogger.ErrRecordNotFound)
		assert.Len(t, recorded.All(), 1)
	})

	t.Run("slow query warns", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn)
		gl.SlowThreshold = time.Nanosecond

		gl.Trace(context.Background(), time.Now().Add(-time.Second), invoiceQuery, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].Message, "SLOW SQL")
	})

	t.Run("normal query at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)

		gl.Trace(context.Background(), time.Now(), invoiceQuery, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL Query", entries[0].Message)
		assert.Equal(t, int64(3), entries[0].ContextMap()["rows"])
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), invoiceQuery, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("request id carried from context", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)
		ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-777")

		gl.Trace(ctx, time.Now(), invoiceQuery, nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-777", entries[0].ContextMap()["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"verbose", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapGormLogLevel(tt.level), "level %q", tt.level)
	}
}
