package minio

import (
	"errors"
	"time"
)

// Config MinIO 上传存储配置
type Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"` // localhost:9000
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Region          string `mapstructure:"region" yaml:"region"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`

	// Bucket 上传文件存放的桶，不存在时自动创建
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	// Prefix 对象 key 前缀
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}
	return ValidateBucketName(c.Bucket)
}

// SetDefaults 填充未设置的字段
func (c *Config) SetDefaults() {
	if c.Bucket == "" {
		c.Bucket = "agent-chat-uploads"
	}
	if c.Prefix == "" {
		c.Prefix = "uploads"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// DefaultConfig 本地开发默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		Bucket:          "agent-chat-uploads",
		Prefix:          "uploads",
		ConnectTimeout:  10 * time.Second,
	}
}
