package stream

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
)

// FramePrefix 帧前缀，只有以它开头的行才携带事件
const FramePrefix = "data: "

// DefaultErrorMessage 用于缺少 error 字段的 error 帧
const DefaultErrorMessage = "unknown error"

var (
	// ErrMalformedFrame 帧内容不是合法 JSON 对象或缺少必填字段
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownEvent type 字段缺失或不认识
	ErrUnknownEvent = errors.New("unknown event type")
)

// ParseLine classifies one line of the stream.
//
//   - ok=false, err=nil: not a frame (blank, comment, other field, empty payload); skip silently.
//   - ok=false, err!=nil: a frame that must be dropped; err wraps ErrMalformedFrame or ErrUnknownEvent.
//   - ok=true: a valid event.
func ParseLine(line string) (types.StreamEvent, bool, error) {
	if strings.TrimSpace(line) == "" {
		return types.StreamEvent{}, false, nil
	}
	if !strings.HasPrefix(line, FramePrefix) {
		return types.StreamEvent{}, false, nil
	}

	payload := strings.TrimSpace(line[len(FramePrefix):])
	if payload == "" {
		return types.StreamEvent{}, false, nil
	}

	ev, err := parsePayload(payload)
	if err != nil {
		return types.StreamEvent{}, false, err
	}
	return ev, true, nil
}

// parsePayload decodes the JSON payload of a frame into a StreamEvent
func parsePayload(payload string) (types.StreamEvent, error) {
	if !gjson.Valid(payload) {
		return types.StreamEvent{}, fmt.Errorf("%w: invalid json", ErrMalformedFrame)
	}
	root := gjson.Parse(payload)
	if !root.IsObject() {
		return types.StreamEvent{}, fmt.Errorf("%w: payload is not an object", ErrMalformedFrame)
	}

	kind := types.EventKind(root.Get("type").String())
	ev := types.StreamEvent{Kind: kind}

	switch kind {
	case types.EventStart:
		threadID, err := requiredString(root, "thread_id", false)
		if err != nil {
			return ev, err
		}
		ev.ThreadID = threadID
		ev.Mode = root.Get("mode").String()

	case types.EventContent:
		delta, err := requiredString(root, "content", true)
		if err != nil {
			return ev, err
		}
		ev.Delta = delta

	case types.EventToolCall, types.EventTool:
		name, err := requiredString(root, "tool_name", false)
		if err != nil {
			return ev, err
		}
		status, err := requiredString(root, "status", false)
		if err != nil {
			return ev, err
		}
		ev.ToolName = name
		ev.Status = types.NormalizeToolStatus(status)
		ev.ResultImage = root.Get("result_image").String()
		if n := root.Get("tool_call_count"); n.Type == gjson.Number {
			ev.ToolCallCount = int(n.Int())
		}

	case types.EventSources:
		sources, err := parseSources(root.Get("sources"))
		if err != nil {
			return ev, err
		}
		ev.Sources = sources

	case types.EventEnd:
		if fc := root.Get("full_content"); fc.Exists() {
			if fc.Type != gjson.String {
				return ev, fmt.Errorf("%w: full_content must be a string", ErrMalformedFrame)
			}
			ev.FullContent = fc.Str
		}

	case types.EventError:
		msg := root.Get("error")
		if msg.Type != gjson.String || strings.TrimSpace(msg.Str) == "" {
			msg = root.Get("message")
		}
		ev.Error = strings.TrimSpace(msg.String())
		if ev.Error == "" {
			ev.Error = DefaultErrorMessage
		}

	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownEvent, string(kind))
	}

	return ev, nil
}

// requiredString 取字符串字段；allowEmpty=false 时空串也算缺失
func requiredString(root gjson.Result, field string, allowEmpty bool) (string, error) {
	v := root.Get(field)
	if !v.Exists() {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedFrame, field)
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedFrame, field)
	}
	if !allowEmpty && strings.TrimSpace(v.Str) == "" {
		return "", fmt.Errorf("%w: empty %s", ErrMalformedFrame, field)
	}
	return v.Str, nil
}

func parseSources(list gjson.Result) ([]types.Source, error) {
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: sources must be an array", ErrMalformedFrame)
	}

	entries := list.Array()
	sources := make([]types.Source, 0, len(entries))
	for i, item := range entries {
		if !item.IsObject() {
			return nil, fmt.Errorf("%w: sources[%d] is not an object", ErrMalformedFrame, i)
		}
		src := types.Source{
			Source:  item.Get("source").String(),
			DocType: item.Get("doc_type").String(),
			Content: item.Get("content").String(),
		}
		// page 只接受整数，其它写法当作没有页码
		if p := item.Get("page"); p.Type == gjson.Number && p.Num == math.Trunc(p.Num) {
			page := int(p.Num)
			src.Page = &page
		}
		sources = append(sources, src)
	}
	return sources, nil
}
