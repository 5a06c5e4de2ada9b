package httpx

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ClientConfig HTTP 客户端参数
type ClientConfig struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	// Timeout 整个请求的超时；流式请求必须为 0，否则长回答会被截断
	Timeout time.Duration
}

// NewHTTPClient creates an HTTP client. Body reads are bounded only by the
// request context when Timeout is zero.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
			// 压缩会让中间层攒数据，流式响应不要
			DisableCompression: true,
		},
	}
}

const maxErrorBody = 4096

// ErrorMessage pulls a human readable message out of a failed response body.
// It understands the {code,message,data} envelope, {"error": ...} and
// FastAPI's {"detail": ...}; anything else is returned as trimmed text.
func ErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	text := strings.TrimSpace(string(body))

	if gjson.Valid(text) {
		for _, path := range []string{"message", "error", "detail", "error.message"} {
			if v := gjson.Get(text, path); v.Type == gjson.String && v.Str != "" {
				return v.Str
			}
		}
	}
	if text == "" {
		return resp.Status
	}
	return text
}
