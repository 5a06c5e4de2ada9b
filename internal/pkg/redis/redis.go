// Package redis 线程锁和限流用到的 Redis 能力：带 token 的锁、Lua 脚本。
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

type Client struct {
	rdb    *redis.Client
	logger *logger.Logger
}

// New 创建客户端并在 5 秒内 ping 一次，连不上直接返回错误
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.L()
	}

	c := &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolTimeout:  cfg.PoolTimeout,
		}),
		logger: log.Named("redis"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	c.logger.Info("redis client initialized", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// Script 一段 Lua 脚本，执行时先 EVALSHA，服务端没有缓存时再 EVAL
type Script struct {
	script *redis.Script
}

func NewScript(src string) *Script {
	return &Script{script: redis.NewScript(src)}
}

// Run 执行脚本并返回原始结果
func (c *Client) Run(ctx context.Context, s *Script, keys []string, args ...any) (any, error) {
	res, err := s.script.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil && err != redis.Nil {
		c.logger.Warn("redis script failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return res, err
}
