package devagent

import (
	"context"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

// Emitter 写出一个事件；返回错误说明客户端已断开
type Emitter func(ev types.StreamEvent) error

// Backend 生成一轮回答。start/end/error 帧由 Server 负责，
// Backend 只产出中间的 content/tool_call/tool/sources 事件并返回完整回答。
type Backend interface {
	Name() string
	Reply(ctx context.Context, req *types.ChatRequest, emit Emitter) (string, error)
}
