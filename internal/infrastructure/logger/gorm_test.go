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

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger_Options(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogMode(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info)

	next := gl.LogMode(gormlogger.Warn).(*GormLogger)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, next.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		elapsed   time.Duration
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{name: "sql error", level: gormlogger.Warn, err: errors.New("duplicate key"), wantLevel: zapcore.ErrorLevel, wantMsg: "SQL Error"},
		{name: "slow query", level: gormlogger.Warn, elapsed: time.Second, wantLevel: zapcore.WarnLevel, wantMsg: "SLOW SQL >= 200ms"},
		{name: "info query", level: gormlogger.Info, wantLevel: zapcore.DebugLevel, wantMsg: "SQL Query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), tt.level)

			ctx, _ := WithRunID(context.Background(), zap.NewNop(), "run-7")
			gl.Trace(ctx, time.Now().Add(-tt.elapsed), sqlFn(`SELECT * FROM "invoices"`, 2), tt.err)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, "run-7", entry.ContextMap()["run_id"])
			assert.EqualValues(t, 2, entry.ContextMap()["rows"])
		})
	}
}

func TestGormLogger_TraceSilentAndNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	silent := NewGormLogger(zap.New(core), gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 1), errors.New("boom"))

	quiet := NewGormLogger(zap.New(core), gormlogger.Error)
	quiet.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)

	assert.Equal(t, 0, logs.Len())
}

func TestGormLogger_Messages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)

	gl.Info(context.Background(), "hidden %d", 1)
	gl.Warn(context.Background(), "pool %s", "exhausted")
	gl.Error(context.Background(), "failed %d", 2)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "pool exhausted", logs.All()[0].Message)
	assert.Equal(t, "failed 2", logs.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
