package transcript

import "github.com/lk2023060901/agent-chat/internal/chat/types"

// Phase 当前轮次所处阶段
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseAwaitingStart Phase = "awaiting_start"
	PhaseStreaming     Phase = "streaming"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
	PhaseCanceled      Phase = "canceled"
)

// Open reports whether a turn is still in flight
func (p Phase) Open() bool {
	return p == PhaseAwaitingStart || p == PhaseStreaming
}

// State is an immutable snapshot of a conversation. Reducer methods never
// modify a State they are given; they return a new one that may share
// unchanged messages with the old one.
type State struct {
	Messages []types.Message
	Phase    Phase
	ThreadID string
	Mode     string

	// CurrentID 正在流式输出的 assistant 消息 id，没有则为空
	CurrentID string
	// LastError 最近一次失败，只在 PhaseFailed 时有值
	LastError *Failure

	mutated bool // 当前 assistant 消息是否收到过 content/tool/sources
}

// NewState returns an empty conversation bound to threadID
func NewState(threadID string) State {
	return State{Phase: PhaseIdle, ThreadID: threadID}
}

// Current returns the message that is streaming, if any
func (s State) Current() (types.Message, bool) {
	if s.CurrentID == "" {
		return types.Message{}, false
	}
	if i := s.index(s.CurrentID); i >= 0 {
		return s.Messages[i], true
	}
	return types.Message{}, false
}

// Last returns the most recent message
func (s State) Last() (types.Message, bool) {
	if len(s.Messages) == 0 {
		return types.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// StreamingCount counts messages flagged as streaming; always 0 or 1
func (s State) StreamingCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.IsStreaming {
			n++
		}
	}
	return n
}

func (s State) index(id string) int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// appendMessage 总是分配新数组，旧快照不受影响
func appendMessage(msgs []types.Message, m types.Message) []types.Message {
	return append(msgs[:len(msgs):len(msgs)], m)
}

// updateMessage 按 id 拷贝并修改一条消息
func updateMessage(msgs []types.Message, id string, fn func(*types.Message)) []types.Message {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].ID == id {
			m := out[i].Clone()
			fn(&m)
			out[i] = m
			break
		}
	}
	return out
}

func removeMessage(msgs []types.Message, id string) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
