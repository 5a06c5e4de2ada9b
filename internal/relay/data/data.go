package data

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/minio"
	"github.com/lk2023060901/agent-chat/internal/pkg/redis"
	"github.com/lk2023060901/agent-chat/internal/pkg/workerpool"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

// Data 中继用到的外部资源；Redis 和 MinIO 按配置可选
type Data struct {
	Upstream    *UpstreamClient
	RedisClient *redis.Client
	MinIOClient *minio.Client
	Pool        *workerpool.Pool
	Logger      *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	if log == nil {
		log = logger.L()
	}

	upstream, err := NewUpstreamClient(config.Upstream, log)
	if err != nil {
		return nil, nil, err
	}

	d := &Data{Upstream: upstream, Logger: log}
	cleanup := func() {
		log.Info("cleaning up data resources")

		if d.Pool != nil {
			d.Pool.Shutdown(5 * time.Second)
		}
		if d.MinIOClient != nil {
			d.MinIOClient.Close()
		}
		if d.RedisClient != nil {
			d.RedisClient.Close()
		}
	}

	if config.Redis.Enabled {
		rc := config.Redis.Config
		d.RedisClient, err = redis.New(&rc, log)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
	}

	if config.Upload.Backend == "minio" {
		if err := initMinIO(d, config, log); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	log.Info("data layer initialized",
		zap.String("upstream", config.Upstream.BaseURL),
		zap.Bool("redis", d.RedisClient != nil),
		zap.String("upload_backend", config.Upload.Backend),
	)
	return d, cleanup, nil
}

func initMinIO(d *Data, config *conf.Config, log *logger.Logger) error {
	mc := config.MinIO
	client, err := minio.NewClient(&mc, log)
	if err != nil {
		return fmt.Errorf("failed to init minio: %w", err)
	}
	d.MinIOClient = client

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure minio bucket: %w", err)
	}

	pool, err := workerpool.New(&workerpool.Config{
		Workers:        config.Upload.Workers,
		ExpiryDuration: time.Minute,
	}, log)
	if err != nil {
		return err
	}
	d.Pool = pool
	return nil
}

// ThreadGuard Redis 启用时用分布式锁，否则用进程内 guard
func (d *Data) ThreadGuard(ttl time.Duration) biz.ThreadGuard {
	if d.RedisClient != nil {
		return NewRedisGuard(d.RedisClient, ttl, d.Logger)
	}
	return biz.NewMemoryGuard()
}

// FileStore 按 upload.backend 选择存储
func (d *Data) FileStore(expiry time.Duration) biz.FileStore {
	if d.MinIOClient != nil {
		return NewMinIOStore(d.MinIOClient, d.Pool, expiry, d.Logger)
	}
	return d.Upstream
}

// Limiter 未启用 Redis 时返回 nil
func (d *Data) Limiter(limit int, window time.Duration) biz.Limiter {
	if d.RedisClient == nil {
		return nil
	}
	return NewRedisLimiter(d.RedisClient, limit, window)
}
