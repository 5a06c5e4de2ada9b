package service

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/response"
	"github.com/lk2023060901/agent-chat/internal/pkg/sse"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"

	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
)

const copyBufferSize = 32 * 1024

// RelayService 流式对话和上传的 HTTP 入口
type RelayService struct {
	chat   *biz.ChatUseCase
	upload *biz.UploadUseCase
	logger *logger.Logger
}

func NewRelayService(chat *biz.ChatUseCase, upload *biz.UploadUseCase, log *logger.Logger) *RelayService {
	if log == nil {
		log = logger.L()
	}
	return &RelayService{
		chat:   chat,
		upload: upload,
		logger: log.Named("relay"),
	}
}

// RegisterRoutes 注册 /chat/stream 和 /upload，middlewares 作用于这两个路由
func (s *RelayService) RegisterRoutes(r gin.IRouter, middlewares ...gin.HandlerFunc) {
	g := r.Group("", middlewares...)
	g.POST("/chat/stream", s.ChatStream)
	g.POST("/upload", s.Upload)
}

// ChatStream 把上游的响应体逐块转发给客户端
//
// 上游打开失败时回 JSON 错误；一旦开始转发，状态码不能再改，上游异常中断时
// 追加一个 error 帧再结束。
func (s *RelayService) ChatStream(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.ThreadID != "" {
		ctx = logger.WithThreadID(ctx, req.ThreadID)
		c.Request = c.Request.WithContext(ctx)
	}

	stream, err := s.chat.Open(ctx, &req)
	if err != nil {
		s.logFailure(ctx, "open chat stream failed", err)
		response.HandleError(c, err)
		return
	}
	defer stream.Close()

	sse.SetStreamHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	w := sse.NewWriter(c.Writer)
	defer w.Close()

	log := s.logger.WithContext(ctx)
	forwarded, err := relayBody(w, stream)
	switch {
	case err == nil:
		log.Info("stream relayed", zap.Int64("bytes", forwarded))
	case errors.Is(err, errDownstream) || ctx.Err() != nil:
		// 客户端断开，关闭上游即可
		log.Info("client went away", zap.Int64("bytes", forwarded), zap.Error(err))
	default:
		log.Warn("upstream stream interrupted", zap.Int64("bytes", forwarded), zap.Error(err))
		if ferr := writeInterrupted(w, err); ferr != nil {
			log.Debug("write interrupt frame failed", zap.Error(ferr))
		}
	}
}

var errDownstream = errors.New("downstream write failed")

// relayBody 一读到数据就写出并 flush，不做任何缓冲或解码
func relayBody(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, errors.Join(errDownstream, werr)
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// writeInterrupted 空行在前，保证 error 帧不会和半截的行拼在一起
func writeInterrupted(w *sse.Writer, cause error) error {
	frame, err := sse.Encode(map[string]string{
		"type":  string(types.EventError),
		"error": apperrors.FormatError(apperrors.ErrUpstreamInterrupted, cause.Error()),
	})
	if err != nil {
		return err
	}
	_, err = w.Write(append([]byte("\n\n"), frame...))
	return err
}

// Upload 接收 multipart 的 files 字段（兼容旧的 file 字段）
func (s *RelayService) Upload(c *gin.Context) {
	policy := s.upload.Policy()
	if policy.MaxFiles > 0 {
		// 多给 1MB 留给 multipart 头
		limit := policy.MaxSize*int64(policy.MaxFiles) + 1<<20
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ErrorWithCode(c, apperrors.ErrUploadTooLarge, err.Error())
			return
		}
		response.BadRequest(c, "invalid multipart form: "+err.Error())
		return
	}
	defer form.RemoveAll()

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}

	files := make([]biz.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, biz.UploadFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	paths, err := s.upload.Upload(c.Request.Context(), files)
	if err != nil {
		s.logFailure(c.Request.Context(), "upload failed", err)
		response.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.UploadResponse{
		Success:   true,
		FilePaths: paths,
		Message:   "uploaded",
	})
}

// logFailure 智能体一侧的故障记 WARN，其余（参数错误、线程占用）记 DEBUG
func (s *RelayService) logFailure(ctx context.Context, msg string, err error) {
	log := s.logger.WithContext(ctx)
	if apperrors.IsUpstreamFault(apperrors.ExtractCode(err)) {
		log.Warn(msg, zap.Error(err))
		return
	}
	log.Debug(msg, zap.Error(err))
}
