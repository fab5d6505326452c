package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("CACHE_BACKEND", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL.Duration)
	assert.Equal(t, 3*time.Second, cfg.Health.ProbeTimeout.Duration)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Upstream.BaseURL)
	assert.Equal(t, -1, cfg.Upstream.NumPredict)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.toml")
	content := `
[server]
port = "9000"

[upstream]
base_url = "http://gpu-box:11434"
model = "qwen2.5-coder"
idle_timeout = "45s"

[cache]
backend = "file"
dir = "/var/cache/codestream"
ttl = "2h"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("OLLAMA_MODEL", "codestral:latest")
	t.Setenv("CACHE_BACKEND", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "http://gpu-box:11434", cfg.Upstream.BaseURL)
	assert.Equal(t, "codestral:latest", cfg.Upstream.Model, "env wins over file")
	assert.Equal(t, 45*time.Second, cfg.Upstream.IdleTimeout.Duration)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Cache.TTL.Duration)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\nttl = \"forever\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateFileBackendNeedsDir(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)
	cfg.Cache.Backend = "file"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.dir")
}
