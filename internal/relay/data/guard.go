package data

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/redis"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

const threadLockPrefix = "agent-chat:thread:"

// RedisGuard 多实例部署时的 thread guard：SetNX 加锁，流打开期间定时续期
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisGuard(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.L()
	}
	return &RedisGuard{client: client, ttl: ttl, logger: log.Named("thread_guard")}
}

func (g *RedisGuard) Acquire(ctx context.Context, threadID string) (func(), error) {
	key := threadLockPrefix + threadID
	token, err := g.client.Lock(ctx, key, g.ttl)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, biz.ErrThreadBusy
	}
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go g.keepAlive(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := g.client.Unlock(ctx, key, token); err != nil {
				g.logger.Warn("release thread lock failed", zap.String("thread_id", threadID), zap.Error(err))
			}
		})
	}, nil
}

func (g *RedisGuard) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), g.ttl/3)
			err := g.client.Refresh(ctx, key, token, g.ttl)
			cancel()
			if errors.Is(err, redis.ErrLockLost) {
				g.logger.Warn("thread lock lost", zap.String("key", key))
				return
			}
			if err != nil {
				g.logger.Warn("refresh thread lock failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
