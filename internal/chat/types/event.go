package types

import "strings"

// EventKind 流事件类型（对应帧中的 type 字段）
type EventKind string

const (
	EventStart    EventKind = "start"
	EventContent  EventKind = "content"
	EventToolCall EventKind = "tool_call"
	EventTool     EventKind = "tool"
	EventSources  EventKind = "sources"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
)

// Valid 判断是否为已知事件类型
func (k EventKind) Valid() bool {
	switch k {
	case EventStart, EventContent, EventToolCall, EventTool, EventSources, EventEnd, EventError:
		return true
	}
	return false
}

// StreamEvent 解析后的流事件，Kind 决定哪些字段有效
type StreamEvent struct {
	Kind EventKind `json:"type"`

	// start
	ThreadID string `json:"thread_id,omitempty"`
	Mode     string `json:"mode,omitempty"`

	// content
	Delta string `json:"content,omitempty"`

	// tool_call / tool
	ToolName      string     `json:"tool_name,omitempty"`
	Status        ToolStatus `json:"status,omitempty"`
	ResultImage   string     `json:"result_image,omitempty"`
	ToolCallCount int        `json:"tool_call_count,omitempty"`

	// sources
	Sources []Source `json:"sources,omitempty"`

	// end
	FullContent string `json:"full_content,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// NormalizeToolStatus 把上游各种状态写法归一到 running / completed
func NormalizeToolStatus(status string) ToolStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "complete", "done", "finished", "success", "已完成":
		return ToolCompleted
	default:
		// running / started / 运行中 以及未知状态
		return ToolRunning
	}
}
