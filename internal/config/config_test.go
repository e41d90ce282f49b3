package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAreLocalOnly(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FITLOG_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Remote.IsConfigured())
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 100, cfg.Sync.RetentionKeep)
	assert.Equal(t, filepath.Join(dir, "fitlog.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FITLOG_DATA_DIR", t.TempDir())
	t.Setenv("FITLOG_REMOTE_URL", " https://remote.example/ ")
	t.Setenv("FITLOG_REMOTE_ACCESS_KEY", "anon-key")
	t.Setenv("FITLOG_SYNC_BACKOFF_BASE_SECONDS", "0")
	t.Setenv("FITLOG_LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Remote.IsConfigured())
	assert.Equal(t, "https://remote.example", cfg.Remote.URL)
	assert.Equal(t, time.Duration(0), cfg.Sync.BackoffBase())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fitlog.yaml")
	body := "data_dir: " + dir + "\nremote:\n  url: http://localhost:8090\n  access_key: k\nsync:\n  max_retries: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Remote.IsConfigured())
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout())
}

func TestRemoteConfiguredNeedsBothFields(t *testing.T) {
	assert.False(t, RemoteConfig{URL: "http://x"}.IsConfigured())
	assert.False(t, RemoteConfig{AccessKey: "k"}.IsConfigured())
	assert.True(t, RemoteConfig{URL: "http://x", AccessKey: "k"}.IsConfigured())
}

func TestLoadServerPortOverride(t *testing.T) {
	t.Setenv("REMOTESTORE_AUTH_TOKEN", " secret ")
	t.Setenv("PORT", "9999")

	cfg, err := LoadServer("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "secret", cfg.AuthToken)
}
