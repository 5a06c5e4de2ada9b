package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/conf"
	"github.com/lk2023060901/agent-chat/internal/pkg/httpx"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"

	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
)

// UpstreamClient 上游智能体服务客户端，实现 biz.Upstream 和 biz.FileStore
type UpstreamClient struct {
	base   *url.URL
	cfg    conf.UpstreamConfig
	stream *http.Client
	upload *http.Client
	logger *logger.Logger
}

func NewUpstreamClient(cfg conf.UpstreamConfig, log *logger.Logger) (*UpstreamClient, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream.base_url %q", cfg.BaseURL)
	}
	if log == nil {
		log = logger.L()
	}

	return &UpstreamClient{
		base: base,
		cfg:  cfg,
		stream: httpx.NewHTTPClient(httpx.ClientConfig{
			DialTimeout:           cfg.DialTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		}),
		upload: httpx.NewHTTPClient(httpx.ClientConfig{
			DialTimeout: cfg.DialTimeout,
			Timeout:     cfg.UploadTimeout,
		}),
		logger: log.Named("upstream"),
	}, nil
}

// BaseURL 上游根地址，静态结果反向代理也指向它
func (u *UpstreamClient) BaseURL() *url.URL {
	cp := *u.base
	return &cp
}

func (u *UpstreamClient) endpoint(path string) string {
	return u.base.String() + "/" + strings.TrimLeft(path, "/")
}

// OpenChat 打开上游流；返回的 body 由调用方关闭
func (u *UpstreamClient) OpenChat(ctx context.Context, req *types.ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer, "encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint(u.cfg.ChatPath), bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternalServer)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if id := logger.GetRequestID(ctx); id != "" {
		httpReq.Header.Set(logger.HeaderRequestID, id)
	}

	resp, err := u.stream.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUpstreamUnavailable, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg := httpx.ErrorMessage(resp)
		return nil, apperrors.New(apperrors.ErrUpstreamStatus, fmt.Sprintf("status %d: %s", resp.StatusCode, msg))
	}

	u.logger.WithContext(ctx).Debug("upstream responded",
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
	)
	return resp.Body, nil
}

// Save 把文件重新编码为 multipart 转发给上游的上传接口
func (u *UpstreamClient) Save(ctx context.Context, files []biz.UploadFile) ([]string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint(u.cfg.UploadPath), pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if id := logger.GetRequestID(ctx); id != "" {
		req.Header.Set(logger.HeaderRequestID, id)
	}

	resp, err := u.upload.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, apperrors.Wrap(err, apperrors.ErrUpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.ErrUploadFailed, fmt.Sprintf("status %d: %s", resp.StatusCode, httpx.ErrorMessage(resp)))
	}

	var out types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUploadFailed, "invalid upload response")
	}
	if !out.Success && len(out.Paths()) == 0 {
		return nil, apperrors.New(apperrors.ErrUploadFailed, out.Message)
	}
	return out.Paths(), nil
}

func writeParts(mw *multipart.Writer, files []biz.UploadFile) error {
	for _, f := range files {
		if err := writePart(mw, f); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *multipart.Writer, f biz.UploadFile) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	part, err := mw.CreateFormFile("files", f.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, rc)
	return err
}
