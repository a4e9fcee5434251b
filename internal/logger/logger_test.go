package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_InitializesLazily(t *testing.T) {
	assert.NotNil(t, Get())
}

func TestJob_TagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Job("networth_snapshot").Infow("batch done", "created", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "batch done", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "networth_snapshot", fields["job"])
	assert.EqualValues(t, 2, fields["created"])
}

func TestReplace_Restores(t *testing.T) {
	prev := Get()

	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	Get().Debug("captured")
	restore()

	assert.Equal(t, 1, logs.Len())
	assert.Same(t, prev, Get())
}
