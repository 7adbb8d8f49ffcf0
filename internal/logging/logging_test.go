package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize_FileOutputJSON(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev; Sugar = prev.Sugar() })

	path := filepath.Join(t.TempDir(), "app.log")
	log, err := Initialize(Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)
	assert.Same(t, log, Logger)

	log.Info("dropped")
	log.Warn("kept", zap.String("port", "CNSHA"))
	Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), `"msg":"kept"`)
	assert.Contains(t, string(b), `"port":"CNSHA"`)
	assert.Contains(t, string(b), `"timestamp"`)
}

func TestInitialize_BadLevelFallsBackToInfo(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev; Sugar = prev.Sugar() })

	log, err := Initialize(Config{Level: "loud", Output: "stdout"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
	assert.False(t, log.Core().Enabled(zap.DebugLevel))
}

func TestInitialize_UnwritableOutput(t *testing.T) {
	_, err := Initialize(Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
