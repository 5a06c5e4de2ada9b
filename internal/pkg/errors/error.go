package errors

import (
	"errors"
	"fmt"
)

// AppError 带业务错误码的错误。Message 来自错误码表，Details 是本次的具体原因。
type AppError struct {
	Code    int
	Message string
	Details string
	Err     error
}

func (e *AppError) Error() string {
	reason := e.Details
	if e.Err != nil {
		reason = e.Err.Error()
	}
	if reason == "" {
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, reason)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code int, details ...string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: firstDetail(details),
	}
}

// Wrap 给 err 加上错误码。err 链上已有 AppError 时沿用它的错误码，
// 只在给了 details 时返回一个替换了 Details 的副本。
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		d := firstDetail(details)
		if d == "" {
			return appErr
		}
		cp := *appErr
		cp.Details = d
		return &cp
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: firstDetail(details),
		Err:     err,
	}
}

func Is(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ExtractCode 非 AppError 一律视为内部错误
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails Details 优先，其次是被包装的错误
func GetDetails(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Details != "" {
		return appErr.Details
	}
	if appErr.Err != nil {
		return appErr.Err.Error()
	}
	return ""
}

func NewThreadBusyError(threadID string) *AppError {
	return New(ErrThreadBusy, "thread "+threadID)
}

func firstDetail(details []string) string {
	if len(details) == 0 {
		return ""
	}
	return details[0]
}
