package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNew_WritesComponentFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := New("listener", dir, "info")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("poller: started", "interval", "3s")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(filepath.Join(dir, "listener.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "component=listener")
	assert.Contains(t, string(b), `msg="poller: started"`)
	assert.NotContains(t, string(b), "hidden")
}

func TestNew_StderrOnly(t *testing.T) {
	logger, closer, err := New("server", "", "debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}
