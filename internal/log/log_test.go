package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	initLogger()
	prev := logger
	t.Cleanup(func() { logger = prev })

	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	return logs
}

func TestLevelsAndFields(t *testing.T) {
	logs := observe(t)

	Debug("calendar computed", "events", 3)
	Info("scheduler started", "schedule", "@daily")
	Error("refresh failed", errors.New("redis down"), "schedule", "@daily")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["events"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "@daily", entries[1].ContextMap()["schedule"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "redis down", entries[2].ContextMap()["err"])
	assert.Equal(t, "@daily", entries[2].ContextMap()["schedule"])
}

func TestOddKeyIsDropped(t *testing.T) {
	logs := observe(t)

	Info("request", "path", "/health", "dangling")

	entries := logs.FilterMessage("request").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"path": "/health"}, entries[0].ContextMap())
}
