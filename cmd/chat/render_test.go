package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/agent-chat/internal/chat/transcript"
	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

func TestPrinterIncremental(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, "http://relay:8080/")

	page := 2
	steps := []types.Message{
		{ID: "a", Role: types.RoleAssistant, Content: "Hel"},
		{ID: "a", Role: types.RoleAssistant, Content: "Hello",
			ToolCalls: []types.ToolCall{{Name: "pest_detection", Status: types.ToolRunning}}},
		{ID: "a", Role: types.RoleAssistant, Content: "Hello",
			ToolCalls: []types.ToolCall{{Name: "pest_detection", Status: types.ToolCompleted, ResultImage: "/pest_results/x.png"}}},
		{ID: "a", Role: types.RoleAssistant, Content: "Hello!",
			Sources:   []types.Source{{Source: "doc.pdf", Page: &page}},
			ToolCalls: []types.ToolCall{{Name: "pest_detection", Status: types.ToolCompleted, ResultImage: "/pest_results/x.png"}}},
	}

	user := types.Message{ID: "u", Role: types.RoleUser, Content: "hi"}
	for _, m := range steps {
		p.Observe(transcript.State{Messages: []types.Message{user, m}})
	}

	want := "Hel" +
		"[tool] pest_detection running\n" +
		"lo" +
		"[tool] pest_detection completed -> http://relay:8080/pest_results/x.png\n" +
		"[sources]\n  1. doc.pdf p.2\n" +
		"!"
	assert.Equal(t, want, out.String())
}

func TestPrinterReplaysNothingTwice(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, "")

	s := transcript.State{Messages: []types.Message{{ID: "a", Role: types.RoleAssistant, Content: "done"}}}
	p.Observe(s)
	p.Observe(s)
	assert.Equal(t, "done", out.String())

	s.Messages = append(s.Messages, types.Message{ID: "b", Role: types.RoleAssistant, Content: "next"})
	p.Observe(s)
	assert.Equal(t, "donenext", out.String())
}

func TestResolve(t *testing.T) {
	p := newPrinter(&bytes.Buffer{}, "http://h")
	assert.Equal(t, "http://h/cow_results/a.png", p.resolve("/cow_results/a.png"))
	assert.Equal(t, "https://cdn/x.png", p.resolve("https://cdn/x.png"))
}
