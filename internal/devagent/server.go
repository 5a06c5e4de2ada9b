// Package devagent 本地开发用的智能体服务，实现中继期望的上游协议：
// POST /chat/stream 输出 data: 帧，POST /upload 把图片存到本地目录。
package devagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/sse"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

// ResultPrefix mock 检测结果图片的路径前缀，直接指向上传目录
const ResultPrefix = "/pest_results"

type Server struct {
	backend   Backend
	policy    biz.UploadPolicy
	uploadDir string
	router    *gin.Engine
	server    *http.Server
	logger    *logger.Logger
}

// NewBackend 按配置选择 mock 或 openai
func NewBackend(cfg conf.DevAgentConfig, log *logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", "mock":
		return NewMockBackend(cfg.TokenDelay), nil
	case "openai":
		return NewOpenAIBackend(cfg.OpenAI, log)
	default:
		return nil, fmt.Errorf("unknown devagent backend %q", cfg.Backend)
	}
}

func New(cfg conf.DevAgentConfig, policy biz.UploadPolicy, backend Backend, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.L()
	}
	log = log.Named("devagent")

	dir := cfg.UploadDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "agent-chat-uploads")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	s := &Server{
		backend:   backend,
		policy:    policy,
		uploadDir: dir,
		logger:    log,
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{SkipPaths: []string{"/health"}}))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": backend.Name()})
	})
	router.POST("/chat/stream", s.chatStream)
	router.POST("/upload", s.upload)
	router.Static(ResultPrefix, dir)
	s.router = router

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("dev agent created",
		zap.String("backend", backend.Name()),
		zap.String("upload_dir", dir),
	)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) UploadDir() string { return s.uploadDir }

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("starting dev agent", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func (s *Server) chatStream(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req.Normalize()

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.New().String()
	}
	mode := req.Mode
	if mode == "" {
		mode = "auto"
	}

	ctx := c.Request.Context()
	log := s.logger.WithContext(ctx).With(zap.String("thread_id", threadID))

	sse.SetStreamHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	w := sse.NewWriter(c.Writer)
	defer w.Close()

	if err := w.WriteEvent(types.StreamEvent{Kind: types.EventStart, ThreadID: threadID, Mode: mode}); err != nil {
		log.Debug("client gone before start", zap.Error(err))
		return
	}

	full, err := s.backend.Reply(ctx, &req, func(ev types.StreamEvent) error {
		return w.WriteEvent(ev)
	})
	if ctx.Err() != nil {
		log.Info("client disconnected", zap.Int("frames", w.Frames()))
		return
	}
	if err != nil {
		log.Warn("reply failed", zap.Error(err))
		_ = w.WriteEvent(types.StreamEvent{Kind: types.EventError, Error: err.Error()})
		return
	}
	_ = w.WriteEvent(types.StreamEvent{Kind: types.EventEnd, FullContent: full})
	log.Info("reply finished", zap.Int("frames", w.Frames()), zap.Int("chars", len(full)))
}

func (s *Server) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}

	files := make([]biz.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = biz.UploadFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		}
	}
	if err := s.policy.Check(files); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	paths := make([]string, 0, len(headers))
	for _, fh := range headers {
		p, err := s.save(fh)
		if err != nil {
			s.logger.Error("save upload failed", zap.String("file", fh.Filename), zap.Error(err))
			for _, done := range paths {
				_ = os.Remove(done)
			}
			detail(c, http.StatusInternalServerError, "failed to save "+fh.Filename)
			return
		}
		paths = append(paths, p)
	}

	resp := types.UploadResponse{
		Success:   true,
		FilePaths: paths,
		Message:   fmt.Sprintf("uploaded %d file(s)", len(paths)),
	}
	if len(paths) == 1 {
		resp.FilePath = paths[0]
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := uuid.New().String() + strings.ToLower(filepath.Ext(fh.Filename))
	dst := filepath.Join(s.uploadDir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}
