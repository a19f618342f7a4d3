package logger

import (
	"context"
	"testing"

	"readly/internal/config"
	"readly/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitialize_TeesExtraCores(t *testing.T) {
	rb := eventlog.NewRingBuffer(4)
	require.NoError(t, Initialize(config.LoggerConfig{Level: "info", Env: "development"}, eventlog.NewCore(rb, zapcore.ErrorLevel)))

	Get().Info("not captured")
	Get().Error("captured")

	events, err := rb.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "captured", events[0].Message)
}

func TestInitialize_InvalidLevel(t *testing.T) {
	assert.Error(t, Initialize(config.LoggerConfig{Level: "loud"}))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}
