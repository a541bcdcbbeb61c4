package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud")
	assert.Error(t, err)
}

func TestInstall(t *testing.T) {
	l, err := New("debug")
	require.NoError(t, err)
	restore := Install(l)
	defer restore()
	assert.Same(t, l, zap.L())
}

func TestNewJSON(t *testing.T) {
	l := NewJSON("debug")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = NewJSON("")
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
