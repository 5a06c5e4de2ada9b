package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/response"
	"github.com/lk2023060901/agent-chat/internal/pkg/validator"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"

	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
)

// RateLimiter 滑动窗口限流中间件；限流器故障时放行
//
// strategy: ip（默认）或 endpoint（路径 + IP）
func RateLimiter(limiter biz.Limiter, strategy string, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.L()
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, strategy)

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Error("rate limiter error", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := int(time.Until(d.ResetAt).Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.ErrorWithCode(c, apperrors.ErrTooManyRequests,
				fmt.Sprintf("please try again in %d seconds", retry))
			return
		}

		c.Next()
	}
}

func buildRateLimitKey(c *gin.Context, strategy string) string {
	client := validator.ClientKey(c.ClientIP())
	switch strategy {
	case "endpoint":
		return fmt.Sprintf("endpoint:%s:%s", c.Request.URL.Path, client)
	default:
		return "ip:" + client
	}
}
