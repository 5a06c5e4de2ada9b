package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (biz.Decision, error) {
	if l.err != nil {
		return biz.Decision{}, l.err
	}
	l.seen[key]++
	n := l.seen[key]
	remaining := l.limit - n
	if remaining < 0 {
		remaining = 0
	}
	return biz.Decision{
		Allowed:   n <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(30 * time.Second),
	}, nil
}

func newLimitedRouter(l biz.Limiter, strategy string) *gin.Engine {
	r := gin.New()
	r.Use(RateLimiter(l, strategy, logger.NewNop()))
	r.GET("/a", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRateLimiter(t *testing.T) {
	r := newLimitedRouter(&countingLimiter{limit: 2, seen: map[string]int{}}, "ip")

	rec := get(r, "/a")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, get(r, "/b").Code)

	rec = get(r, "/a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiterEndpointStrategy(t *testing.T) {
	l := &countingLimiter{limit: 1, seen: map[string]int{}}
	r := newLimitedRouter(l, "endpoint")

	assert.Equal(t, http.StatusOK, get(r, "/a").Code)
	assert.Equal(t, http.StatusOK, get(r, "/b").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/a").Code)
	assert.Len(t, l.seen, 2)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r := newLimitedRouter(&countingLimiter{err: errors.New("redis down")}, "ip")
	rec := get(r, "/a")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestBuildRateLimitKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/chat/stream", nil)
	c.Request.RemoteAddr = "10.1.2.3:4567"

	assert.Equal(t, "ip:10.1.2.3", buildRateLimitKey(c, "ip"))
	assert.Equal(t, "endpoint:/api/chat/stream:10.1.2.3", buildRateLimitKey(c, "endpoint"))

	c.Request.RemoteAddr = "bogus"
	assert.Equal(t, "ip:unknown", buildRateLimitKey(c, ""))
}
