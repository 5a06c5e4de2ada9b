package biz

import (
	"context"
	"time"
)

// Decision 一次限流判定
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter 滑动窗口限流
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
