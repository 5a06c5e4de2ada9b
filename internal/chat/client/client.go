package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/httpx"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

const (
	DefaultChatPath   = "/api/chat/stream"
	DefaultUploadPath = "/api/upload"
	uploadField       = "files"
)

// Config 客户端配置
type Config struct {
	ServerURL             string        `mapstructure:"server_url"`
	ChatPath              string        `mapstructure:"chat_path"`
	UploadPath            string        `mapstructure:"upload_path"`
	DialTimeout           time.Duration `mapstructure:"dial_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
	UploadTimeout         time.Duration `mapstructure:"upload_timeout"`
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	if c.ChatPath == "" {
		c.ChatPath = DefaultChatPath
	}
	if c.UploadPath == "" {
		c.UploadPath = DefaultUploadPath
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = 60 * time.Second
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = 2 * time.Minute
	}
}

// StatusError the server answered with a non-2xx status
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// File is one attachment to upload
type File struct {
	Name   string
	Reader io.Reader
}

// Client talks to the relay: one upload exchange, one streaming exchange
type Client struct {
	cfg    Config
	stream *http.Client
	upload *http.Client
	log    *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	cfg.SetDefaults()
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if log == nil {
		log = logger.L()
	}

	return &Client{
		cfg: cfg,
		stream: httpx.NewHTTPClient(httpx.ClientConfig{
			DialTimeout:           cfg.DialTimeout,
			ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		}),
		upload: httpx.NewHTTPClient(httpx.ClientConfig{
			DialTimeout: cfg.DialTimeout,
			Timeout:     cfg.UploadTimeout,
		}),
		log: log.Named("client"),
	}
}

// Upload sends files as one multipart batch and returns the stored paths in
// submission order.
func (c *Client) Upload(ctx context.Context, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(uploadField, filepath.Base(f.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+c.cfg.UploadPath, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: httpx.ErrorMessage(resp)}
	}

	var out types.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: "invalid upload response: " + err.Error()}
	}
	paths := out.Paths()
	if len(paths) != len(files) {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("upload returned %d paths for %d files", len(paths), len(files))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	c.log.Debug("uploaded attachments", zap.Int("count", len(paths)))
	return paths, nil
}

// UploadPaths opens local files and uploads them
func (c *Client) UploadPaths(ctx context.Context, paths []string) ([]string, error) {
	opened := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		files = append(files, File{Name: p, Reader: f})
	}

	return c.Upload(ctx, files)
}

// OpenStream posts the chat request and returns the raw response body. The
// body is closed when ctx is done; the caller must close it as well.
func (c *Client) OpenStream(ctx context.Context, chatReq types.ChatRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServerURL+c.cfg.ChatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if id := logger.GetRequestID(ctx); id != "" {
		req.Header.Set(logger.HeaderRequestID, id)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: httpx.ErrorMessage(resp)}
	}

	c.log.WithContext(ctx).Debug("stream opened", zap.Int("status", resp.StatusCode))
	return resp.Body, nil
}
