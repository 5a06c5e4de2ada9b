package errors

import (
	"fmt"
	"net/http"
)

// 业务错误码：1xxx 通用，2xxx 中继，3xxx 上传
const (
	Success = 0

	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrTooManyRequests = 1006
	ErrServiceUnavail  = 1008

	ErrThreadBusy          = 2000
	ErrUpstreamUnavailable = 2001
	ErrUpstreamStatus      = 2002
	ErrUpstreamInterrupted = 2003

	ErrUploadEmpty    = 3000
	ErrUploadFileType = 3001
	ErrUploadTooLarge = 3002
	ErrUploadFailed   = 3003
)

type codeInfo struct {
	status  int
	message string
}

var codes = map[int]codeInfo{
	Success: {http.StatusOK, "Success"},

	ErrInternalServer:  {http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {http.StatusBadRequest, "Invalid parameters"},
	ErrTooManyRequests: {http.StatusTooManyRequests, "Too many requests"},
	ErrServiceUnavail:  {http.StatusServiceUnavailable, "Service unavailable"},

	ErrThreadBusy:          {http.StatusConflict, "A stream is already open for this thread"},
	ErrUpstreamUnavailable: {http.StatusBadGateway, "Agent service unavailable"},
	ErrUpstreamStatus:      {http.StatusBadGateway, "Agent service returned an error"},
	ErrUpstreamInterrupted: {http.StatusBadGateway, "Agent stream interrupted"},

	ErrUploadEmpty:    {http.StatusBadRequest, "No files uploaded"},
	ErrUploadFileType: {http.StatusBadRequest, "Unsupported file type"},
	ErrUploadTooLarge: {http.StatusRequestEntityTooLarge, "File size exceeds limit"},
	ErrUploadFailed:   {http.StatusBadGateway, "Upload failed"},
}

func lookup(code int) codeInfo {
	if info, ok := codes[code]; ok {
		return info
	}
	return codes[ErrInternalServer]
}

// GetHTTPStatus 未知错误码按 500 处理
func GetHTTPStatus(code int) int {
	return lookup(code).status
}

func GetMessage(code int) string {
	return lookup(code).message
}

// IsUpstreamFault 错误是否由智能体服务一侧引起（5xx 中的 502）
func IsUpstreamFault(code int) bool {
	return GetHTTPStatus(code) == http.StatusBadGateway
}

// FormatError 返回给客户端的 message："<错误码描述>: <details>"
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if d := firstDetail(details); d != "" {
		return fmt.Sprintf("%s: %s", msg, d)
	}
	return msg
}
