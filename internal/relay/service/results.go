package service

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// ResultsProxy 把工具生成的结果图片路径原样反向代理到上游
type ResultsProxy struct {
	proxy    *httputil.ReverseProxy
	prefixes []string
}

func NewResultsProxy(target *url.URL, prefixes []string, log *logger.Logger) *ResultsProxy {
	if log == nil {
		log = logger.L()
	}
	log = log.Named("results")

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("results proxy failed", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}

	return &ResultsProxy{proxy: proxy, prefixes: prefixes}
}

// RegisterRoutes 每个前缀注册 GET/HEAD
func (p *ResultsProxy) RegisterRoutes(r gin.IRouter) {
	h := gin.WrapH(p.proxy)
	for _, prefix := range p.prefixes {
		prefix = "/" + strings.Trim(prefix, "/")
		r.GET(prefix+"/*filepath", h)
		r.HEAD(prefix+"/*filepath", h)
	}
}
