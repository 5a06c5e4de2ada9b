package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// chunkReader 按给定的块依次返回，最后返回 err（默认 io.EOF）
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func readAll(t *testing.T, er *EventReader) ([]types.StreamEvent, error) {
	t.Helper()
	var events []types.StreamEvent
	for {
		ev, err := er.Next(context.Background())
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestEventReaderFrameSplitAcrossChunks(t *testing.T) {
	r := &chunkReader{chunks: []string{
		"data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n",
		`data: {"type":"con`,
		"tent\",\"content\":\"A\"}\n\n",
		"data: {\"type\":\"end\"}\n\n",
	}}
	er := NewEventReader(r, logger.NewNop())

	events, err := readAll(t, er)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventStart, events[0].Kind)
	assert.Equal(t, types.StreamEvent{Kind: types.EventContent, Delta: "A"}, events[1])
	assert.Equal(t, types.EventEnd, events[2].Kind)
	assert.Zero(t, er.Dropped())
	assert.Equal(t, 3, er.Frames())
}

func TestEventReaderFrameIsolation(t *testing.T) {
	body := "data: {\"type\":\"content\",\"content\":\"A\"}\n\n" +
		"data: {\"type\":\"content\",\"content\":\n\n" +
		"data: {\"type\":\"mystery\"}\n\n" +
		"data: {\"type\":\"content\",\"content\":\"B\"}\n\n"
	er := NewEventReader(strings.NewReader(body), logger.NewNop(), WithChunkSize(7))

	events, err := readAll(t, er)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Delta)
	assert.Equal(t, "B", events[1].Delta)
	assert.Equal(t, 2, er.Dropped())
}

func TestEventReaderFinalLineWithoutNewline(t *testing.T) {
	er := NewEventReader(strings.NewReader(`data: {"type":"end","full_content":"done"}`), logger.NewNop())

	events, err := readAll(t, er)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 1)
	assert.Equal(t, "done", events[0].FullContent)
}

func TestEventReaderReadError(t *testing.T) {
	reset := errors.New("connection reset by peer")
	r := &chunkReader{
		chunks: []string{"data: {\"type\":\"content\",\"content\":\"A\"}\n\ndata: {\"type\":\"content\",\"con"},
		err:    reset,
	}
	er := NewEventReader(r, logger.NewNop())

	events, err := readAll(t, er)
	assert.ErrorIs(t, err, reset)
	// 完整的帧先交付，半截帧丢弃
	require.Len(t, events, 1)
	assert.Equal(t, "A", events[0].Delta)
}

func TestEventReaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	er := NewEventReader(strings.NewReader("data: {\"type\":\"content\",\"content\":\"A\"}\n"), logger.NewNop())
	cancel()

	_, err := er.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLineReaderChunkHook(t *testing.T) {
	var sizes []int
	lr := NewLineReader(strings.NewReader("ab\ncd\n"), WithChunkSize(4), WithChunkHook(func(n int) {
		sizes = append(sizes, n)
	}))

	var lines []string
	for {
		line, err := lr.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"ab", "cd"}, lines)
	assert.Equal(t, []int{4, 2}, sizes)
}
