package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrLockHeld 锁被其他持有者占用
	ErrLockHeld = errors.New("redis: lock is held by someone else")
	// ErrLockLost 锁已过期，或者已经被别人拿走
	ErrLockLost = errors.New("redis: lock expired or token mismatch")
)

// 只有 token 匹配时才删除或续期，避免误操作别人的锁
var (
	unlockScript = NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	refreshScript = NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// Lock SET NX 加锁，返回释放和续期时要用的 token
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	c.logger.Debug("lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return token, nil
}

func (c *Client) Unlock(ctx context.Context, key, token string) error {
	return c.compareAndRun(ctx, unlockScript, key, token)
}

// Refresh 把自己持有的锁续期到 ttl
func (c *Client) Refresh(ctx context.Context, key, token string, ttl time.Duration) error {
	return c.compareAndRun(ctx, refreshScript, key, token, ttl.Milliseconds())
}

func (c *Client) compareAndRun(ctx context.Context, s *Script, key, token string, extra ...any) error {
	res, err := c.Run(ctx, s, []string{key}, append([]any{token}, extra...)...)
	if err != nil {
		return err
	}
	if n, _ := res.(int64); n == 0 {
		return ErrLockLost
	}
	return nil
}
