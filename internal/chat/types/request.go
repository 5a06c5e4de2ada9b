package types

import (
	"errors"
	"strings"
)

// ChatRequest 流式对话请求
type ChatRequest struct {
	Message    string   `json:"message"`
	ImagePath  string   `json:"image_path,omitempty"` // 单图片路径（兼容旧版本）
	ImagePaths []string `json:"image_paths,omitempty"`
	ThreadID   string   `json:"thread_id"`
	Mode       string   `json:"mode,omitempty"`      // auto | detection | planning
	WorkMode   string   `json:"work_mode,omitempty"` // 透传给上游
}

// Validate 文本和图片至少要有一个
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" && len(r.ImagePaths) == 0 && r.ImagePath == "" {
		return errors.New("message or image_paths is required")
	}
	return nil
}

// Normalize 合并两个图片字段：ImagePath 排在 ImagePaths 首位，
// 只传了 ImagePaths 时 ImagePath 取第一张，两种上游都能拿到图片
func (r *ChatRequest) Normalize() {
	if r.ImagePath == "" {
		if len(r.ImagePaths) > 0 {
			r.ImagePath = r.ImagePaths[0]
		}
		return
	}
	for _, p := range r.ImagePaths {
		if p == r.ImagePath {
			return
		}
	}
	r.ImagePaths = append([]string{r.ImagePath}, r.ImagePaths...)
}

// UploadResponse 上传接口响应
type UploadResponse struct {
	Success   bool     `json:"success"`
	FilePath  string   `json:"file_path,omitempty"` // 单文件路径（兼容旧版本）
	FilePaths []string `json:"file_paths"`
	Message   string   `json:"message,omitempty"`
}

// Paths 返回规范化后的路径列表
func (r *UploadResponse) Paths() []string {
	if len(r.FilePaths) > 0 {
		return r.FilePaths
	}
	if r.FilePath != "" {
		return []string{r.FilePath}
	}
	return nil
}
