package minio

import (
	"fmt"
	"mime"
	"net"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// S3 桶名：3-63 位小写字母数字和连字符，首尾不能是连字符
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

func ValidateBucketName(name string) error {
	switch {
	case !bucketNamePattern.MatchString(name):
		return fmt.Errorf("%w: %q", ErrInvalidBucketName, name)
	case strings.Contains(name, "--"):
		return fmt.Errorf("%w: %q contains consecutive hyphens", ErrInvalidBucketName, name)
	case net.ParseIP(name) != nil:
		return fmt.Errorf("%w: %q looks like an IP address", ErrInvalidBucketName, name)
	}
	return nil
}

func validateObjectName(name string) error {
	if name == "" || len(name) > 1024 || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}
	return nil
}

// DetectContentType 按扩展名推断，未知时为 application/octet-stream
func DetectContentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ObjectKey 上传对象 key：<prefix>/<yyyymmdd>/<uuid><ext>
//
// 原始文件名只保留小写扩展名，避免路径穿越和重名覆盖。
func ObjectKey(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filepath.Base(filename)))
	return path.Join(strings.Trim(prefix, "/"), now.Format("20060102"), uuid.NewString()+ext)
}
