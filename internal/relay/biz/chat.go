package biz

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// Upstream 上游智能体服务的流式对话接口
//
// 连接失败返回 ErrUpstreamUnavailable，非 2xx 返回 ErrUpstreamStatus（AppError）。
type Upstream interface {
	OpenChat(ctx context.Context, req *types.ChatRequest) (io.ReadCloser, error)
}

// ChatStream 上游响应体，Close 时一并释放 thread guard
type ChatStream struct {
	body    io.ReadCloser
	release func()
	once    sync.Once
}

func (s *ChatStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *ChatStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
		s.release()
	})
	return err
}

// ChatUseCase 中继一次流式对话
type ChatUseCase struct {
	upstream Upstream
	guard    ThreadGuard
	logger   *logger.Logger
}

func NewChatUseCase(upstream Upstream, guard ThreadGuard, log *logger.Logger) *ChatUseCase {
	if log == nil {
		log = logger.L()
	}
	return &ChatUseCase{
		upstream: upstream,
		guard:    guard,
		logger:   log.Named("chat"),
	}
}

// Open 校验请求、占用 thread 并打开上游流。
// 返回错误时没有任何字节被转发，调用方可以直接回错误响应。
func (uc *ChatUseCase) Open(ctx context.Context, req *types.ChatRequest) (*ChatStream, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidParams, err.Error())
	}
	req.Normalize()

	release := func() {}
	if req.ThreadID != "" {
		r, err := uc.guard.Acquire(ctx, req.ThreadID)
		if errors.Is(err, ErrThreadBusy) {
			return nil, apperrors.NewThreadBusyError(req.ThreadID)
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavail, "thread guard unavailable")
		}
		release = r
	}

	log := uc.logger.WithContext(ctx)
	body, err := uc.upstream.OpenChat(ctx, req)
	if err != nil {
		release()
		log.Warn("open upstream stream failed", zap.Error(err))
		return nil, err
	}

	log.Info("upstream stream opened",
		zap.Int("images", len(req.ImagePaths)),
		zap.String("mode", req.Mode),
	)
	return &ChatStream{body: body, release: release}, nil
}
