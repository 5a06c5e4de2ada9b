package response

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/lk2023060901/agent-chat/internal/pkg/errors"
)

// Response 中继的错误体 {code, message, data}；流一旦开始就不再使用
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

var emptyData = struct{}{}

// HandleError 按 AppError 的错误码写出错误体并中止后续 handler，
// 其他错误一律按内部错误处理。err 会挂到 gin.Context 上供日志中间件记录。
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := apperrors.ExtractCode(err)
	abort(c, code, apperrors.FormatError(code, apperrors.GetDetails(err)))
}

// ErrorWithCode 直接用错误码响应
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	abort(c, code, apperrors.FormatError(code, details...))
}

func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, apperrors.ErrInvalidParams, message)
}

func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: message,
		Data:    emptyData,
	})
}
