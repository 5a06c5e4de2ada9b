package biz

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// UploadFile 待上传的单个文件，Open 可以被调用多次
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileStore 保存一批文件，按提交顺序返回可传给智能体的路径
type FileStore interface {
	Save(ctx context.Context, files []UploadFile) ([]string, error)
}

// UploadPolicy 上传限制
type UploadPolicy struct {
	MaxSize           int64
	MaxFiles          int
	AllowedExtensions []string
}

// Allowed 扩展名是否允许（不区分大小写）
func (p UploadPolicy) Allowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range p.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Check 逐个校验文件，返回第一个不合格的 AppError
func (p UploadPolicy) Check(files []UploadFile) error {
	if len(files) == 0 {
		return apperrors.New(apperrors.ErrUploadEmpty)
	}
	if p.MaxFiles > 0 && len(files) > p.MaxFiles {
		return apperrors.New(apperrors.ErrInvalidParams, fmt.Sprintf("at most %d files per upload", p.MaxFiles))
	}
	for _, f := range files {
		if !p.Allowed(f.Name) {
			return apperrors.New(apperrors.ErrUploadFileType,
				fmt.Sprintf("%s: allowed types are %s", f.Name, strings.Join(p.AllowedExtensions, ", ")))
		}
		if f.Size > p.MaxSize {
			return apperrors.New(apperrors.ErrUploadTooLarge,
				fmt.Sprintf("%s is %d bytes, limit is %d", f.Name, f.Size, p.MaxSize))
		}
		if f.Size == 0 {
			return apperrors.New(apperrors.ErrUploadEmpty, f.Name+" is empty")
		}
	}
	return nil
}

// UploadUseCase 校验并保存上传的图片
type UploadUseCase struct {
	store  FileStore
	policy UploadPolicy
	logger *logger.Logger
}

func NewUploadUseCase(store FileStore, policy UploadPolicy, log *logger.Logger) *UploadUseCase {
	if log == nil {
		log = logger.L()
	}
	return &UploadUseCase{
		store:  store,
		policy: policy,
		logger: log.Named("upload"),
	}
}

// Policy 当前上传限制
func (uc *UploadUseCase) Policy() UploadPolicy {
	return uc.policy
}

// Upload 返回的路径与 files 一一对应
func (uc *UploadUseCase) Upload(ctx context.Context, files []UploadFile) ([]string, error) {
	if err := uc.policy.Check(files); err != nil {
		return nil, err
	}

	log := uc.logger.WithContext(ctx)
	paths, err := uc.store.Save(ctx, files)
	if err != nil {
		log.Warn("save uploaded files failed", zap.Int("files", len(files)), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrUploadFailed)
	}
	if len(paths) != len(files) {
		return nil, apperrors.New(apperrors.ErrUploadFailed,
			fmt.Sprintf("storage returned %d paths for %d files", len(paths), len(files)))
	}

	log.Info("files uploaded", zap.Int("files", len(files)))
	return paths, nil
}
