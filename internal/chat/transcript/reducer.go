package transcript

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

const (
	msgClosedBeforeStart   = "the agent closed the stream before responding"
	msgClosedWithoutOutput = "the agent closed the stream without producing a response"
)

// Reducer applies turn transitions to a State. It holds no conversation
// state itself: every method maps (State, input) to a new State, so one
// Reducer can serve any number of conversations.
type Reducer struct {
	newID func() string
}

// Option configures a Reducer
type Option func(*Reducer)

// WithIDGenerator replaces the uuid based message id generator
func WithIDGenerator(fn func() string) Option {
	return func(r *Reducer) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{newID: func() string { return uuid.New().String() }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit appends the user message and opens a turn (→ AwaitingStart)
func (r *Reducer) Submit(s State, text string, attachments []string) (State, error) {
	if s.Phase.Open() {
		return s, ErrTurnInProgress
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return s, ErrEmptyMessage
	}

	msg := types.Message{
		ID:      r.newID(),
		Role:    types.RoleUser,
		Content: text,
	}
	if len(attachments) > 0 {
		msg.Attachments = append([]string(nil), attachments...)
	}

	next := s
	next.Messages = appendMessage(s.Messages, msg)
	next.Phase = PhaseAwaitingStart
	next.CurrentID = ""
	next.LastError = nil
	next.mutated = false
	return next, nil
}

// Apply applies one stream event. An event that does not fit the current
// phase leaves the state untouched and returns ErrAlreadyStreaming or
// ErrNoTurn; the caller may log it and keep reading.
func (r *Reducer) Apply(s State, ev types.StreamEvent) (State, error) {
	if !s.Phase.Open() {
		return s, fmt.Errorf("%w: %s event in phase %s", ErrNoTurn, ev.Kind, s.Phase)
	}

	switch ev.Kind {
	case types.EventStart:
		if s.Phase == PhaseStreaming {
			return s, ErrAlreadyStreaming
		}
		next := r.open(s)
		if ev.ThreadID != "" {
			next.ThreadID = ev.ThreadID
		}
		if ev.Mode != "" {
			next.Mode = ev.Mode
		}
		return next, nil

	case types.EventContent:
		next := r.ensureOpen(s)
		next.Messages = updateMessage(next.Messages, next.CurrentID, func(m *types.Message) {
			m.Content += ev.Delta
		})
		if ev.Delta != "" {
			next.mutated = true
		}
		return next, nil

	case types.EventToolCall, types.EventTool:
		next := r.ensureOpen(s)
		next.Messages = updateMessage(next.Messages, next.CurrentID, func(m *types.Message) {
			m.ToolCalls = applyToolEvent(m.ToolCalls, ev)
		})
		next.mutated = true
		return next, nil

	case types.EventSources:
		next := r.ensureOpen(s)
		sources := types.CloneSources(ev.Sources)
		if sources == nil {
			sources = []types.Source{}
		}
		// 整体替换，不做增量合并
		next.Messages = updateMessage(next.Messages, next.CurrentID, func(m *types.Message) {
			m.Sources = sources
		})
		next.mutated = true
		return next, nil

	case types.EventEnd:
		next := r.ensureOpen(s)
		next.Messages = updateMessage(next.Messages, next.CurrentID, func(m *types.Message) {
			// 累积的增量优先；只有什么都没收到时才采用 full_content
			if m.Content == "" && ev.FullContent != "" {
				m.Content = ev.FullContent
			}
			m.IsStreaming = false
		})
		next.Phase = PhaseCompleted
		next.CurrentID = ""
		return next, nil

	case types.EventError:
		return r.Fail(s, Upstream(ev.Error)), nil
	}

	return s, fmt.Errorf("%w: unknown event %q", ErrNoTurn, ev.Kind)
}

// Fail ends the open turn with f. An assistant message that never received
// an update is removed; one that did is finalized as is. Either way a
// separate error message is appended. Outside an open turn Fail is a no-op.
func (r *Reducer) Fail(s State, f *Failure) State {
	if !s.Phase.Open() {
		return s
	}
	if f == nil {
		f = Upstream(msgClosedWithoutOutput)
	}

	next := r.settle(s)
	next.Messages = appendMessage(next.Messages, types.Message{
		ID:      r.newID(),
		Role:    types.RoleAssistant,
		Content: f.Text(),
	})
	next.Phase = PhaseFailed
	next.LastError = f
	return next
}

// Close handles end of input without an end event. A message that received
// updates is completed; a turn that produced nothing is an upstream failure.
func (r *Reducer) Close(s State) State {
	switch s.Phase {
	case PhaseAwaitingStart:
		return r.Fail(s, Upstream(msgClosedBeforeStart))
	case PhaseStreaming:
		if !s.mutated {
			return r.Fail(s, Upstream(msgClosedWithoutOutput))
		}
		next := r.settle(s)
		next.Phase = PhaseCompleted
		return next
	}
	return s
}

// Cancel stops the open turn on behalf of the caller. It settles the
// assistant message like Fail does but appends no error message.
func (r *Reducer) Cancel(s State) State {
	if !s.Phase.Open() {
		return s
	}
	next := r.settle(s)
	next.Phase = PhaseCanceled
	return next
}

// open appends the assistant placeholder (→ Streaming)
func (r *Reducer) open(s State) State {
	msg := types.Message{
		ID:          r.newID(),
		Role:        types.RoleAssistant,
		IsStreaming: true,
	}
	next := s
	next.Messages = appendMessage(s.Messages, msg)
	next.Phase = PhaseStreaming
	next.CurrentID = msg.ID
	next.mutated = false
	return next
}

// ensureOpen 没收到 start 就直接来了内容时，隐式创建 assistant 消息
func (r *Reducer) ensureOpen(s State) State {
	if s.Phase == PhaseAwaitingStart {
		return r.open(s)
	}
	return s
}

// settle 结束当前 assistant 消息：有更新则定稿，否则回滚占位消息
func (r *Reducer) settle(s State) State {
	next := s
	if s.CurrentID != "" {
		if s.mutated {
			next.Messages = updateMessage(s.Messages, s.CurrentID, func(m *types.Message) {
				m.IsStreaming = false
			})
		} else {
			next.Messages = removeMessage(s.Messages, s.CurrentID)
		}
	}
	next.CurrentID = ""
	next.mutated = false
	return next
}

// applyToolEvent running 追加新条目；completed 升级同名最近一个 running 条目，找不到则追加
func applyToolEvent(calls []types.ToolCall, ev types.StreamEvent) []types.ToolCall {
	if ev.Status == types.ToolCompleted {
		for i := len(calls) - 1; i >= 0; i-- {
			if calls[i].Name == ev.ToolName && calls[i].Status == types.ToolRunning {
				calls[i].Status = types.ToolCompleted
				if ev.ResultImage != "" {
					calls[i].ResultImage = ev.ResultImage
				}
				return calls
			}
		}
	}
	return append(calls, types.ToolCall{
		Name:        ev.ToolName,
		Status:      ev.Status,
		ResultImage: ev.ResultImage,
	})
}
