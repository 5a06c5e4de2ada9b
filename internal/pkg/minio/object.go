package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// UploadInfo 上传结果
type UploadInfo struct {
	Key  string
	ETag string
	Size int64
}

// PutObject 写入上传桶，size 未知时传 -1，contentType 为空时按扩展名推断
func (c *Client) PutObject(ctx context.Context, key string, r io.Reader, size int64, contentType string) (UploadInfo, error) {
	if c.closed.Load() {
		return UploadInfo{}, ErrClosed
	}
	if err := validateObjectName(key); err != nil {
		return UploadInfo{}, err
	}
	if contentType == "" {
		contentType = DetectContentType(key)
	}

	info, err := c.api.PutObject(ctx, c.config.Bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return UploadInfo{}, opError("put", c.config.Bucket, key, err)
	}

	c.logger.Debug("object stored", zap.String("object", key), zap.Int64("size", info.Size))
	return UploadInfo{Key: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

// PresignedGetObject 临时下载地址，智能体服务凭它取图
func (c *Client) PresignedGetObject(ctx context.Context, key string, expiry time.Duration) (*url.URL, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateObjectName(key); err != nil {
		return nil, err
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("%w: expiry must be positive", ErrInvalidArgument)
	}

	u, err := c.api.PresignedGetObject(ctx, c.config.Bucket, key, expiry, nil)
	if err != nil {
		return nil, opError("presign", c.config.Bucket, key, err)
	}
	return u, nil
}

// RemoveObject 清理失败批次留下的对象，不存在不算错误
func (c *Client) RemoveObject(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	err := c.api.RemoveObject(ctx, c.config.Bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !IsNotFound(err) {
		return opError("remove", c.config.Bucket, key, err)
	}
	return nil
}
