package data

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
	"github.com/lk2023060901/agent-chat/internal/pkg/minio"
	"github.com/lk2023060901/agent-chat/internal/pkg/workerpool"
	"github.com/lk2023060901/agent-chat/internal/relay/biz"
)

// MinIOStore 把上传文件并发写入 MinIO，返回预签名下载地址
type MinIOStore struct {
	client *minio.Client
	pool   workerpool.Submitter
	expiry time.Duration
	logger *logger.Logger
}

func NewMinIOStore(client *minio.Client, pool workerpool.Submitter, expiry time.Duration, log *logger.Logger) *MinIOStore {
	if log == nil {
		log = logger.L()
	}
	return &MinIOStore{client: client, pool: pool, expiry: expiry, logger: log.Named("minio_store")}
}

type storedObject struct {
	key string
	url string
}

// Save 任意一个文件失败时删除本批已写入的对象
func (s *MinIOStore) Save(ctx context.Context, files []biz.UploadFile) ([]string, error) {
	now := time.Now()
	objects, err := workerpool.Map(ctx, s.pool, files, func(ctx context.Context, f biz.UploadFile) (storedObject, error) {
		return s.put(ctx, f, now)
	})
	if err != nil {
		s.cleanup(objects)
		return nil, err
	}

	urls := make([]string, len(objects))
	for i, o := range objects {
		urls[i] = o.url
	}
	return urls, nil
}

func (s *MinIOStore) put(ctx context.Context, f biz.UploadFile, now time.Time) (storedObject, error) {
	rc, err := f.Open()
	if err != nil {
		return storedObject{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	key := minio.ObjectKey(s.client.Prefix(), f.Name, now)
	if _, err := s.client.PutObject(ctx, key, rc, f.Size, f.ContentType); err != nil {
		return storedObject{}, err
	}

	u, err := s.client.PresignedGetObject(ctx, key, s.expiry)
	if err != nil {
		s.cleanup([]storedObject{{key: key}})
		return storedObject{}, err
	}
	return storedObject{key: key, url: u.String()}, nil
}

func (s *MinIOStore) cleanup(objects []storedObject) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, o := range objects {
		if o.key == "" {
			continue
		}
		if err := s.client.RemoveObject(ctx, o.key); err != nil {
			s.logger.Warn("remove partial upload failed", zap.String("object", o.key), zap.Error(err))
		}
	}
}
