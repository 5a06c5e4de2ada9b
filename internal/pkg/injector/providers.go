package injector

import (
	"time"

	"github.com/google/wire"

	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
	"github.com/lk2023060901/agent-chat/internal/relay/data"
	"github.com/lk2023060901/agent-chat/internal/relay/service"
	"github.com/lk2023060901/agent-chat/internal/server"
)

// ProviderSet is the Wire provider set for the relay server
var ProviderSet = wire.NewSet(
	dataProviderSet,
	useCaseProviderSet,
	serviceProviderSet,
	server.NewHTTPServer,
	newApp,
)

var dataProviderSet = wire.NewSet(
	provideData,
	provideUpstream,
	provideThreadGuard,
	provideFileStore,
	provideLimiter,
)

var useCaseProviderSet = wire.NewSet(
	provideUploadPolicy,
	biz.NewChatUseCase,
	biz.NewUploadUseCase,
)

var serviceProviderSet = wire.NewSet(
	service.NewRelayService,
	provideResultsProxy,
)

func provideData(config *conf.Config, log *logger.Logger) (*data.Data, func(), error) {
	return data.NewData(config, log)
}

func provideUpstream(d *data.Data) biz.Upstream {
	return d.Upstream
}

func provideThreadGuard(d *data.Data, config *conf.Config) biz.ThreadGuard {
	return d.ThreadGuard(config.Redis.LockTTL)
}

func provideFileStore(d *data.Data, config *conf.Config) biz.FileStore {
	return d.FileStore(config.Upload.PresignExpiry)
}

// provideLimiter 未开启限流时返回 nil，HTTP server 据此跳过中间件
func provideLimiter(d *data.Data, config *conf.Config) biz.Limiter {
	if !config.RateLimit.Enabled {
		return nil
	}
	return d.Limiter(config.RateLimit.MaxRequests, time.Duration(config.RateLimit.WindowSeconds)*time.Second)
}

func provideUploadPolicy(config *conf.Config) biz.UploadPolicy {
	return biz.UploadPolicy{
		MaxSize:           config.Upload.MaxSize,
		MaxFiles:          config.Upload.MaxFiles,
		AllowedExtensions: config.Upload.AllowedExtensions,
	}
}

func provideResultsProxy(d *data.Data, config *conf.Config, log *logger.Logger) *service.ResultsProxy {
	return service.NewResultsProxy(d.Upstream.BaseURL(), config.Upstream.ResultPrefixes, log)
}
