package minio

import (
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
)

var (
	ErrClosed            = errors.New("minio: client is closed")
	ErrInvalidArgument   = errors.New("minio: invalid argument")
	ErrInvalidBucketName = errors.New("minio: invalid bucket name")
	ErrInvalidObjectName = errors.New("minio: invalid object name")
)

// OpError 一次存储操作失败，Object 为空表示桶级操作
type OpError struct {
	Op     string
	Bucket string
	Object string
	Err    error
}

func (e *OpError) Error() string {
	target := e.Bucket
	if e.Object != "" {
		target += "/" + e.Object
	}
	if target == "" {
		return fmt.Sprintf("minio %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("minio %s %s: %v", e.Op, target, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, bucket, object string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Bucket: bucket, Object: object, Err: err}
}

func responseCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

// IsNotFound 桶或对象不存在
func IsNotFound(err error) bool {
	switch responseCode(err) {
	case "NoSuchBucket", "NoSuchKey":
		return true
	}
	return false
}

func isBucketAlreadyExists(err error) bool {
	switch responseCode(err) {
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return true
	}
	return false
}
