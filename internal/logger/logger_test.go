package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_IsNoop(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	assert.False(t, l.Log.Core().Enabled(zapcore.ErrorLevel))
}

func TestInit_Level(t *testing.T) {
	l := New()
	require.NoError(t, l.Init("Info"))
	assert.True(t, l.Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Log.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, l.Init("debug"))
	assert.True(t, l.Log.Core().Enabled(zapcore.DebugLevel))
}

func TestInit_InvalidLevel(t *testing.T) {
	l := New()
	assert.Error(t, l.Init("loud"))
}

func TestInit_File(t *testing.T) {
	l := New()
	l.File = filepath.Join(t.TempDir(), "officesync.log")
	require.NoError(t, l.Init("info"))

	l.Log.Info("hello file", zap.String("entity", "tasks"))
	_ = l.Log.Sync()

	data, err := os.ReadFile(l.File)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"hello file"`))
	assert.True(t, strings.Contains(string(data), `"entity":"tasks"`))
}
