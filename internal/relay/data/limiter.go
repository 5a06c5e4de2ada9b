package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lk2023060901/agent-chat/internal/pkg/redis"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

// 滑动窗口：ZSET 成员为唯一 id，分数为毫秒时间戳
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1, now + window}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
return {0, 0, tonumber(oldest) + window}
`)

// RedisLimiter 基于 Redis 的滑动窗口限流
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "agent-chat:rate_limit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (biz.Decision, error) {
	now := time.Now().UnixMilli()
	result, err := l.client.Run(ctx, slidingWindowScript, []string{l.prefix + key},
		now, l.window.Milliseconds(), l.limit, uuid.NewString())
	if err != nil {
		return biz.Decision{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return biz.Decision{}, fmt.Errorf("invalid rate limit result: %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	reset, _ := values[2].(int64)

	return biz.Decision{
		Allowed:   allowed == 1,
		Limit:     l.limit,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(reset),
	}, nil
}
