package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/agent-chat/internal/chat/transcript"
	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// fakeRelay 模拟中继的两个接口
type fakeRelay struct {
	uploadCalls atomic.Int32
	chatCalls   atomic.Int32
	lastRequest atomic.Value // types.ChatRequest

	upload func(w http.ResponseWriter, r *http.Request)
	chat   func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeRelay) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(DefaultUploadPath, func(w http.ResponseWriter, r *http.Request) {
		f.uploadCalls.Add(1)
		f.upload(w, r)
	})
	mux.HandleFunc(DefaultChatPath, func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		var req types.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastRequest.Store(req)
		f.chat(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func echoUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var paths []string
	for _, fh := range r.MultipartForm.File["files"] {
		paths = append(paths, "/uploads/"+fh.Filename)
	}
	_ = json.NewEncoder(w).Encode(types.UploadResponse{Success: true, FilePaths: paths})
}

// writeChunks 逐块写出并 flush
func writeChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	for _, c := range chunks {
		_, _ = w.Write([]byte(c))
		flusher.Flush()
	}
}

func tempImages(t *testing.T, names ...string) []string {
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte("fake image "+n), 0o644))
	}
	return paths
}

func newConversation(srv *httptest.Server, opts ...ConversationOption) *Conversation {
	c := New(Config{ServerURL: srv.URL}, logger.NewNop())
	opts = append([]ConversationOption{WithLogger(logger.NewNop()), WithThreadID("t-1")}, opts...)
	return NewConversation(c, opts...)
}

func TestSendUploadThenStream(t *testing.T) {
	relay := &fakeRelay{
		upload: echoUpload,
		chat: func(w http.ResponseWriter, r *http.Request) {
			writeChunks(w,
				"data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n",
				`data: {"type":"con`,
				"tent\",\"content\":\"A\"}\n\n",
				"data: {\"type\":\"end\"}\n\n",
			)
		},
	}
	srv := relay.server(t)

	var maxStreaming int
	cv := newConversation(srv, WithMode("auto", "field"), WithObserver(func(s transcript.State) {
		if n := s.StreamingCount(); n > maxStreaming {
			maxStreaming = n
		}
	}))

	images := tempImages(t, "a.jpg", "b.png", "c.webp")
	state, err := cv.Send(context.Background(), "what is this?", images)
	require.NoError(t, err)

	req := relay.lastRequest.Load().(types.ChatRequest)
	assert.Equal(t, []string{"/uploads/a.jpg", "/uploads/b.png", "/uploads/c.webp"}, req.ImagePaths)
	assert.Equal(t, "t-1", req.ThreadID)
	assert.Equal(t, "auto", req.Mode)
	assert.Equal(t, "field", req.WorkMode)

	require.Len(t, state.Messages, 2)
	assert.Equal(t, types.RoleUser, state.Messages[0].Role)
	assert.Len(t, state.Messages[0].Attachments, 3)
	assert.Equal(t, "A", state.Messages[1].Content)
	assert.False(t, state.Messages[1].IsStreaming)
	assert.Equal(t, transcript.PhaseCompleted, state.Phase)
	assert.Equal(t, 1, maxStreaming)
	assert.Equal(t, state, cv.State())
}

func TestSendUploadFailureShortCircuits(t *testing.T) {
	relay := &fakeRelay{
		upload: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = w.Write([]byte(`{"code":3002,"message":"File size exceeds limit: a.jpg","data":{}}`))
		},
		chat: func(w http.ResponseWriter, r *http.Request) {},
	}
	srv := relay.server(t)
	cv := newConversation(srv)

	state, err := cv.Send(context.Background(), "look", tempImages(t, "a.jpg"))

	f, ok := transcript.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, transcript.FailureUpstream, f.Kind)
	assert.Zero(t, relay.chatCalls.Load())
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Sorry, something went wrong:\n\nFile size exceeds limit: a.jpg", state.Messages[1].Content)
}

func TestSendNon2xxIsUpstreamFailure(t *testing.T) {
	relay := &fakeRelay{
		chat: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"code":2001,"message":"Agent service unavailable","data":{}}`))
		},
	}
	cv := newConversation(relay.server(t))

	state, err := cv.Send(context.Background(), "hi", nil)

	f, ok := transcript.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, transcript.FailureUpstream, f.Kind)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	require.Len(t, state.Messages, 2)
	assert.Contains(t, state.Messages[1].Content, "Agent service unavailable")
	assert.NotContains(t, state.Messages[1].Content, "Hint:")
}

func TestSendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cv := NewConversation(New(Config{ServerURL: url}, logger.NewNop()), WithLogger(logger.NewNop()))
	state, err := cv.Send(context.Background(), "hi", nil)

	f, ok := transcript.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, transcript.FailureTransport, f.Kind)
	require.Len(t, state.Messages, 2)
	assert.True(t, strings.HasSuffix(state.Messages[1].Content, "and that the agent service is running."))
	assert.Equal(t, transcript.PhaseFailed, state.Phase)
}

func TestSendErrorEventAfterStart(t *testing.T) {
	relay := &fakeRelay{
		chat: func(w http.ResponseWriter, r *http.Request) {
			writeChunks(w,
				"data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n",
				"data: {\"type\":\"error\",\"error\":\"knowledge base offline\"}\n\n",
				"data: {\"type\":\"content\",\"content\":\"never applied\"}\n\n",
			)
		},
	}
	cv := newConversation(relay.server(t))

	state, err := cv.Send(context.Background(), "hi", nil)
	require.Error(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Sorry, something went wrong:\n\nknowledge base offline", state.Messages[1].Content)
	assert.Zero(t, state.StreamingCount())
}

func TestSendTruncatedStreamCompletes(t *testing.T) {
	relay := &fakeRelay{
		chat: func(w http.ResponseWriter, r *http.Request) {
			writeChunks(w,
				"data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n",
				"data: not json at all\n\n",
				"data: {\"type\":\"content\",\"content\":\"partial\"}\n\n",
			)
		},
	}
	cv := newConversation(relay.server(t))

	state, err := cv.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "partial", state.Messages[1].Content)
	assert.False(t, state.Messages[1].IsStreaming)
	assert.Equal(t, transcript.PhaseCompleted, state.Phase)
}

func TestSendCanceledMidStream(t *testing.T) {
	release := make(chan struct{})
	relay := &fakeRelay{
		chat: func(w http.ResponseWriter, r *http.Request) {
			writeChunks(w,
				"data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n",
				"data: {\"type\":\"content\",\"content\":\"so far\"}\n\n",
			)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		},
	}
	defer close(release)
	srv := relay.server(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cv := newConversation(srv, WithObserver(func(s transcript.State) {
		if cur, ok := s.Current(); ok && cur.Content == "so far" {
			cancel()
		}
	}))

	state, err := cv.Send(ctx, "hi", nil)

	f, ok := transcript.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, transcript.FailureCanceled, f.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, transcript.PhaseCanceled, state.Phase)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "so far", state.Messages[1].Content)
	assert.False(t, state.Messages[1].IsStreaming)
}

func TestSendWhileBusy(t *testing.T) {
	opened := make(chan struct{})
	release := make(chan struct{})
	relay := &fakeRelay{
		chat: func(w http.ResponseWriter, r *http.Request) {
			writeChunks(w, "data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n")
			close(opened)
			<-release
			writeChunks(w, "data: {\"type\":\"end\",\"full_content\":\"done\"}\n\n")
		},
	}
	cv := newConversation(relay.server(t))

	errCh := make(chan error, 1)
	go func() {
		_, err := cv.Send(context.Background(), "first", nil)
		errCh <- err
	}()

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("stream was never opened")
	}

	_, err := cv.Send(context.Background(), "second", nil)
	assert.ErrorIs(t, err, transcript.ErrTurnInProgress)

	close(release)
	require.NoError(t, <-errCh)

	state := cv.State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "done", state.Messages[1].Content)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want transcript.FailureKind
	}{
		{&StatusError{StatusCode: 502, Message: "x"}, transcript.FailureUpstream},
		{fmt.Errorf("post: %w", errors.New("dial tcp: connection refused")), transcript.FailureTransport},
		{context.Canceled, transcript.FailureCanceled},
		{transcript.Upstream("y"), transcript.FailureUpstream},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err).Kind, "%v", tt.err)
	}
}
