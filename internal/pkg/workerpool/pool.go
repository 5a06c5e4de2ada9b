// Package workerpool 在 ants 协程池上提供有序的批量并发处理。
package workerpool

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("workerpool: closed")

type Config struct {
	Workers        int           `mapstructure:"workers"`
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"` // 空闲 worker 回收间隔
	NonBlocking    bool          `mapstructure:"non_blocking"`    // 满载时 Submit 直接失败
}

func DefaultConfig() *Config {
	return &Config{Workers: 8, ExpiryDuration: time.Minute}
}

// Stats 累计计数
type Stats struct {
	Submitted int64
	Completed int64
	Panicked  int64
}

// Pool 任务里的 panic 会被恢复并计数，不会带崩进程
type Pool struct {
	ants   *ants.Pool
	logger *logger.Logger

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

func New(cfg *Config, log *logger.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workerpool: workers must be positive, got %d", cfg.Workers)
	}
	if log == nil {
		log = logger.L()
	}

	opts := []ants.Option{ants.WithNonblocking(cfg.NonBlocking)}
	if cfg.ExpiryDuration > 0 {
		opts = append(opts, ants.WithExpiryDuration(cfg.ExpiryDuration))
	}
	ap, err := ants.NewPool(cfg.Workers, opts...)
	if err != nil {
		return nil, fmt.Errorf("workerpool: %w", err)
	}
	return &Pool{ants: ap, logger: log.Named("workerpool")}, nil
}

func (p *Pool) Submit(task func()) error {
	if p.ants.IsClosed() {
		return ErrPoolClosed
	}

	err := p.ants.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.panicked.Add(1)
				p.logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stacktrace"))
			}
			p.completed.Add(1)
		}()
		task()
	})
	switch {
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	case err != nil:
		return err
	}
	p.submitted.Add(1)
	return nil
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Shutdown 最多等 timeout 让运行中的任务结束
func (p *Pool) Shutdown(timeout time.Duration) {
	if err := p.ants.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}
