package types

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolStatus 工具调用状态
type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
)

// ToolCall 单次工具调用记录
type ToolCall struct {
	Name        string     `json:"name"`
	Status      ToolStatus `json:"status"`
	ResultImage string     `json:"result_image,omitempty"` // 结果图片路径，原样透传
}

// Source 知识库引用来源
type Source struct {
	Source  string `json:"source"`
	Page    *int   `json:"page,omitempty"`
	DocType string `json:"doc_type,omitempty"`
	Content string `json:"content"`
}

// Message 对话中的一轮消息
//
// Content 在流式输出期间只追加；Attachments 创建后不再修改；
// ToolCalls 只追加或把 running 升级为 completed；Sources 整体替换。
type Message struct {
	ID          string     `json:"id"`
	Role        Role       `json:"role"`
	Content     string     `json:"content"`
	Attachments []string   `json:"attachments,omitempty"`
	IsStreaming bool       `json:"is_streaming"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	Sources     []Source   `json:"sources,omitempty"`
}

// Clone 深拷贝消息
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = append([]string(nil), m.Attachments...)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	if m.Sources != nil {
		out.Sources = CloneSources(m.Sources)
	}
	return out
}

// CloneSources 拷贝来源列表（包括 Page 指针）
func CloneSources(src []Source) []Source {
	if src == nil {
		return nil
	}
	out := make([]Source, len(src))
	for i, s := range src {
		out[i] = s
		if s.Page != nil {
			page := *s.Page
			out[i].Page = &page
		}
	}
	return out
}
