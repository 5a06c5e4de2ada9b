package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "/chat/stream", cfg.Upstream.ChatPath)
	assert.Equal(t, []string{"/pest_results", "/cow_results", "/rice_results"}, cfg.Upstream.ResultPrefixes)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxSize)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "upstream", cfg.Upload.Backend)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "mock", cfg.DevAgent.Backend)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
upstream:
  base_url: http://agent:8000
  dial_timeout: 3s
upload:
  backend: minio
minio:
  bucket: chat-images
log:
  level: debug
  format: console
`), 0o644))

	t.Setenv("AGENT_CHAT_UPSTREAM_BASE_URL", "http://override:8000")
	t.Setenv("AGENT_CHAT_REDIS_ENABLED", "true")
	t.Setenv("AGENT_CHAT_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "http://override:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.DialTimeout)
	assert.Equal(t, "minio", cfg.Upload.Backend)
	assert.Equal(t, "chat-images", cfg.MinIO.Bucket)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no upstream", func(c *Config) { c.Upstream.BaseURL = "" }},
		{"bad backend", func(c *Config) { c.Upload.Backend = "s3" }},
		{"zero max size", func(c *Config) { c.Upload.MaxSize = 0 }},
		{"zero workers", func(c *Config) { c.Upload.Workers = 0 }},
		{"rate limit without redis", func(c *Config) { c.RateLimit.Enabled = true }},
		{"bad devagent backend", func(c *Config) { c.DevAgent.Backend = "claude" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
