// Package minio 上传存储：把图片写进一个桶并签发临时下载地址。
package minio

import (
	"context"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// Client 绑定到一个上传桶的 MinIO 客户端
type Client struct {
	api    *minio.Client
	config Config
	logger *logger.Logger
	closed atomic.Bool
}

func NewClient(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}
	if log == nil {
		log = logger.L()
	}

	conf := *cfg
	conf.SetDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	api, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKeyID, conf.SecretAccessKey, ""),
		Secure: conf.UseSSL,
		Region: conf.Region,
	})
	if err != nil {
		return nil, opError("connect", "", "", err)
	}

	c := &Client{api: api, config: conf, logger: log.Named("minio")}
	c.logger.Info("minio client initialized",
		zap.String("endpoint", conf.Endpoint),
		zap.String("bucket", conf.Bucket),
		zap.Bool("use_ssl", conf.UseSSL),
	)
	return c, nil
}

func (c *Client) Bucket() string { return c.config.Bucket }

func (c *Client) Prefix() string { return c.config.Prefix }

// Ping 在 ConnectTimeout 内检查服务可达
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	_, err := c.api.BucketExists(ctx, c.config.Bucket)
	return opError("ping", c.config.Bucket, "", err)
}

// EnsureBucket 桶不存在时创建；并发创建时对方先建好也算成功
func (c *Client) EnsureBucket(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	bucket := c.config.Bucket
	exists, err := c.api.BucketExists(ctx, bucket)
	if err != nil {
		return opError("bucket exists", bucket, "", err)
	}
	if exists {
		return nil
	}

	err = c.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
	if err != nil && !isBucketAlreadyExists(err) {
		return opError("make bucket", bucket, "", err)
	}
	c.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Close 之后所有操作返回 ErrClosed；可重复调用
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.logger.Info("minio client closed")
	}
	return nil
}
