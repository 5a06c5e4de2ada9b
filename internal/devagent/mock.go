package devagent

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

// 消息以这些指令开头时 mock 走对应的脚本
const (
	CommandError   = "/error"
	CommandSources = "/sources"
)

// MockBackend 脚本化的回答：有图片时先模拟一次检测工具调用，然后逐词输出
type MockBackend struct {
	delay time.Duration
}

func NewMockBackend(delay time.Duration) *MockBackend {
	return &MockBackend{delay: delay}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Reply(ctx context.Context, req *types.ChatRequest, emit Emitter) (string, error) {
	msg := strings.TrimSpace(req.Message)
	if strings.HasPrefix(msg, CommandError) {
		return "", errors.New("mock agent failure requested")
	}

	calls := 0
	for _, img := range req.ImagePaths {
		calls++
		if err := emit(types.StreamEvent{Kind: types.EventToolCall, ToolName: "pest_detection", Status: types.ToolRunning, ToolCallCount: calls}); err != nil {
			return "", err
		}
		if err := m.sleep(ctx); err != nil {
			return "", err
		}
		if err := emit(types.StreamEvent{
			Kind:          types.EventToolCall,
			ToolName:      "pest_detection",
			Status:        types.ToolCompleted,
			ResultImage:   "/pest_results/" + path.Base(img),
			ToolCallCount: calls,
		}); err != nil {
			return "", err
		}
	}

	if strings.HasPrefix(msg, CommandSources) {
		page := 3
		if err := emit(types.StreamEvent{Kind: types.EventSources, Sources: []types.Source{
			{Source: "rice_handbook.pdf", Page: &page, DocType: "pdf", Content: "Brown planthopper damage appears as hopperburn."},
			{Source: "faq.md", DocType: "markdown", Content: "Scout fields weekly during tillering."},
		}}); err != nil {
			return "", err
		}
	}

	reply := m.compose(msg, len(req.ImagePaths))
	for _, word := range strings.SplitAfter(reply, " ") {
		if err := m.sleep(ctx); err != nil {
			return "", err
		}
		if err := emit(types.StreamEvent{Kind: types.EventContent, Delta: word}); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func (m *MockBackend) compose(msg string, images int) string {
	var b strings.Builder
	if images > 0 {
		fmt.Fprintf(&b, "Analyzed %d image(s). ", images)
	}
	if msg == "" {
		b.WriteString("No question was asked.")
	} else {
		fmt.Fprintf(&b, "You said: %s", msg)
	}
	return b.String()
}

func (m *MockBackend) sleep(ctx context.Context) error {
	if m.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
