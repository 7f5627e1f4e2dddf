package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdapterForwardsStructuredFields(t *testing.T) {
	obsCore, logs := observer.New(zapcore.DebugLevel)
	a := NewAdapter(zap.New(obsCore)).Named("store")

	a.Debug("merged", "inserted", 2)
	a.Info("restored", "count", 3)
	a.Warn("remote sync failed", "job", "push")
	a.Error("local store write failed", "error", "disk full")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "store", entries[0].LoggerName)
	assert.Equal(t, int64(3), entries[1].ContextMap()["count"])
	assert.Equal(t, "push", entries[2].ContextMap()["job"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestNilLoggerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { NewAdapter(nil).Info("ignored", "k", "v") })
}

func TestNewLevels(t *testing.T) {
	l, err := New(Config{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = New(Config{Level: "warn", Encoding: "console"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"}, false)
	assert.Error(t, err)
	_, err = New(Config{Encoding: "xml"}, false)
	assert.Error(t, err)
}
