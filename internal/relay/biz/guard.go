package biz

import (
	"context"
	"errors"
	"sync"
)

// ErrThreadBusy 同一 thread 已有未结束的流
var ErrThreadBusy = errors.New("thread already has an open stream")

// ThreadGuard 保证每个 thread 同时最多只有一个中继流
//
// Acquire 成功后返回的 release 必须被调用且可以重复调用。
type ThreadGuard interface {
	Acquire(ctx context.Context, threadID string) (release func(), err error)
}

// MemoryGuard 单实例部署时使用的进程内 guard
type MemoryGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{active: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, threadID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.active[threadID]; ok {
		return nil, ErrThreadBusy
	}
	g.active[threadID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, threadID)
			g.mu.Unlock()
		})
	}, nil
}

// Active 当前持有的 thread 数
func (g *MemoryGuard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
