package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresServerURL(t *testing.T) {
	l := NewConfigLoader()
	_, err := l.Load("")
	assert.ErrorIs(t, err, ErrServerURLRequired)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("PHOENIX_SERVER_URL", "https://r.example")

	l := NewConfigLoader()
	cfg, err := l.Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://r.example", cfg.ServerURL)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, 5, cfg.ReconnectAttempts)
	assert.Equal(t, 2000*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ReplayWindow)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phoenix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverUrl: https://from-yaml.example
reconnectAttempts: 9
storage: file
storagePath: /tmp/phoenix.json
`), 0o644))

	l := NewConfigLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-yaml.example", cfg.ServerURL)
	assert.Equal(t, 9, cfg.ReconnectAttempts)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "/tmp/phoenix.json", cfg.StoragePath)
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phoenix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serverUrl: https://from-yaml.example\n"), 0o644))

	t.Setenv("PHOENIX_SERVER_URL", "https://from-env.example")

	l := NewConfigLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example", cfg.ServerURL)
}

func TestMissingYAMLFileIsNotAnError(t *testing.T) {
	t.Setenv("PHOENIX_SERVER_URL", "https://r.example")

	l := NewConfigLoader()
	_, err := l.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}
