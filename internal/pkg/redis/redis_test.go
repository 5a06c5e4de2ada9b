package redis

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

func testAddr() string {
	if addr := os.Getenv("AGENT_CHAT_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// setupTestClient 本地没有 redis 时跳过
func setupTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", testAddr(), 300*time.Millisecond)
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", testAddr(), err)
	}
	conn.Close()

	cfg := DefaultConfig()
	cfg.Addr = testAddr()
	client, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"missing addr", func(c *Config) { c.Addr = "" }, true},
		{"bad db", func(c *Config) { c.DB = 16 }, true},
		{"zero pool", func(c *Config) { c.PoolSize = 0 }, true},
		{"idle above pool", func(c *Config) { c.MinIdleConns = 20 }, true},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLock(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()
	key := "test:lock:" + uuid.New().String()

	token, err := client.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = client.Lock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	assert.NoError(t, client.Refresh(ctx, key, token, 10*time.Second))
	assert.ErrorIs(t, client.Refresh(ctx, key, "someone-else", time.Second), ErrLockLost)

	assert.ErrorIs(t, client.Unlock(ctx, key, "someone-else"), ErrLockLost)
	require.NoError(t, client.Unlock(ctx, key, token))

	token2, err := client.Lock(ctx, key, time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Unlock(ctx, key, token2))
}

func TestRunScript(t *testing.T) {
	client := setupTestClient(t)
	echo := NewScript("return ARGV[1]")

	// 第二次走 EVALSHA 缓存
	for i := 0; i < 2; i++ {
		result, err := client.Run(context.Background(), echo, nil, "pong")
		require.NoError(t, err)
		assert.Equal(t, "pong", result)
	}
}
