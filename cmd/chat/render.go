package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/lk2023060901/agent-chat/internal/chat/transcript"
	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

// progress 某条 assistant 消息已经打印到哪里
type progress struct {
	content int
	tools   []types.ToolStatus
	sources int
}

// printer turns transcript snapshots into incremental terminal output.
// Snapshots only ever grow a message, so printing the unseen suffix is enough.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
	seen    map[string]*progress
}

func newPrinter(out io.Writer, baseURL string) *printer {
	return &printer{
		out:     out,
		baseURL: strings.TrimRight(baseURL, "/"),
		seen:    make(map[string]*progress),
	}
}

func (p *printer) Observe(s transcript.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range s.Messages {
		if m.Role != types.RoleAssistant {
			continue
		}
		pr, ok := p.seen[m.ID]
		if !ok {
			pr = &progress{}
			p.seen[m.ID] = pr
		}
		p.tools(m, pr)
		p.sources(m, pr)
		if len(m.Content) > pr.content {
			fmt.Fprint(p.out, m.Content[pr.content:])
			pr.content = len(m.Content)
		}
	}
}

func (p *printer) tools(m types.Message, pr *progress) {
	for i, call := range m.ToolCalls {
		if i < len(pr.tools) && pr.tools[i] == call.Status {
			continue
		}
		line := fmt.Sprintf("[tool] %s %s", call.Name, call.Status)
		if call.ResultImage != "" {
			line += " -> " + p.resolve(call.ResultImage)
		}
		fmt.Fprintln(p.out, line)
		if i < len(pr.tools) {
			pr.tools[i] = call.Status
		} else {
			pr.tools = append(pr.tools, call.Status)
		}
	}
}

// sources 每次整体替换后重新打印
func (p *printer) sources(m types.Message, pr *progress) {
	if len(m.Sources) == 0 || len(m.Sources) == pr.sources {
		return
	}
	fmt.Fprintln(p.out, "[sources]")
	for i, src := range m.Sources {
		ref := src.Source
		if src.Page != nil {
			ref = fmt.Sprintf("%s p.%d", ref, *src.Page)
		}
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, ref)
	}
	pr.sources = len(m.Sources)
}

// resolve 结果图片是相对路径时拼上服务地址
func (p *printer) resolve(path string) string {
	if strings.HasPrefix(path, "/") && p.baseURL != "" {
		return p.baseURL + path
	}
	return path
}
