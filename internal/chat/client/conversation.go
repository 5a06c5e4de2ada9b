package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/stream"
	"github.com/lk2023060901/agent-chat/internal/chat/transcript"
	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

// Transport is what a Conversation needs from the relay
type Transport interface {
	UploadPaths(ctx context.Context, paths []string) ([]string, error)
	OpenStream(ctx context.Context, req types.ChatRequest) (io.ReadCloser, error)
}

// Observer receives every new transcript snapshot, in order
type Observer func(state transcript.State)

// ConversationOption configures a Conversation
type ConversationOption func(*Conversation)

func WithThreadID(threadID string) ConversationOption {
	return func(cv *Conversation) {
		if threadID != "" {
			cv.state.ThreadID = threadID
		}
	}
}

// WithMode sets the mode and work_mode sent with every request
func WithMode(mode, workMode string) ConversationOption {
	return func(cv *Conversation) {
		cv.mode = mode
		cv.workMode = workMode
	}
}

func WithLogger(l *logger.Logger) ConversationOption {
	return func(cv *Conversation) {
		if l != nil {
			cv.log = l
		}
	}
}

func WithObserver(fn Observer) ConversationOption {
	return func(cv *Conversation) {
		if fn != nil {
			cv.observers = append(cv.observers, fn)
		}
	}
}

// Conversation owns one thread's transcript and runs its turns one at a time.
type Conversation struct {
	transport Transport
	reducer   *transcript.Reducer
	log       *logger.Logger
	mode      string
	workMode  string

	mu        sync.Mutex
	state     transcript.State
	busy      bool
	observers []Observer
}

func NewConversation(t Transport, opts ...ConversationOption) *Conversation {
	cv := &Conversation{
		transport: t,
		reducer:   transcript.NewReducer(),
		log:       logger.L(),
		state:     transcript.NewState("thread_" + uuid.New().String()),
	}
	for _, opt := range opts {
		opt(cv)
	}
	cv.log = cv.log.Named("conversation")
	return cv
}

// State returns the latest snapshot
func (cv *Conversation) State() transcript.State {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.state
}

// Subscribe adds an observer for subsequent snapshots
func (cv *Conversation) Subscribe(fn Observer) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.observers = append(cv.observers, fn)
}

// Send runs one turn: append the user message, upload attachments, open the
// stream and apply its events until the turn ends. The returned error is nil
// when the turn completed, a *transcript.Failure when it failed or was
// canceled, or ErrTurnInProgress / ErrEmptyMessage when nothing was sent.
func (cv *Conversation) Send(ctx context.Context, text string, attachments []string) (transcript.State, error) {
	cv.mu.Lock()
	if cv.busy {
		s := cv.state
		cv.mu.Unlock()
		return s, transcript.ErrTurnInProgress
	}
	next, err := cv.reducer.Submit(cv.state, text, attachments)
	if err != nil {
		s := cv.state
		cv.mu.Unlock()
		return s, err
	}
	cv.busy = true
	cv.mu.Unlock()

	defer func() {
		cv.mu.Lock()
		cv.busy = false
		cv.mu.Unlock()
	}()
	cv.commit(next)

	ctx = logger.WithThreadID(ctx, next.ThreadID)
	if last, ok := next.Last(); ok {
		ctx = logger.WithTurnID(ctx, last.ID)
	}
	log := cv.log.WithContext(ctx)
	log.Info("turn submitted", zap.Int("attachments", len(attachments)))

	var paths []string
	if len(attachments) > 0 {
		paths, err = cv.transport.UploadPaths(ctx, attachments)
		if err != nil {
			log.Warn("upload failed", zap.Error(err))
			return cv.abort(ctx, err)
		}
	}

	body, err := cv.transport.OpenStream(ctx, types.ChatRequest{
		Message:    text,
		ImagePaths: paths,
		ThreadID:   next.ThreadID,
		Mode:       cv.mode,
		WorkMode:   cv.workMode,
	})
	if err != nil {
		log.Warn("open stream failed", zap.Error(err))
		return cv.abort(ctx, err)
	}

	return cv.consume(ctx, body)
}

type readResult struct {
	ev  types.StreamEvent
	err error
}

// consume 读取协程只负责解析，状态只在当前 goroutine 里更新
func (cv *Conversation) consume(ctx context.Context, body io.ReadCloser) (transcript.State, error) {
	log := cv.log.WithContext(ctx)
	reader := stream.NewEventReader(body, cv.log)

	results := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	defer body.Close()

	go func() {
		for {
			ev, err := reader.Next(ctx)
			select {
			case results <- readResult{ev: ev, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			body.Close()
			return cv.abort(ctx, ctx.Err())

		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					s := cv.reducer.Close(cv.State())
					cv.commit(s)
					log.Info("stream closed by server",
						zap.String("phase", string(s.Phase)),
						zap.Int("frames", reader.Frames()),
						zap.Int("dropped", reader.Dropped()),
					)
					return s, outcome(s)
				}
				log.Warn("stream read failed", zap.Error(r.err))
				return cv.abort(ctx, r.err)
			}

			s, err := cv.reducer.Apply(cv.State(), r.ev)
			if err != nil {
				log.Warn("event ignored", zap.String("type", string(r.ev.Kind)), zap.Error(err))
				continue
			}
			cv.commit(s)

			if !s.Phase.Open() {
				log.Info("turn finished",
					zap.String("phase", string(s.Phase)),
					zap.Int("frames", reader.Frames()),
					zap.Int("dropped", reader.Dropped()),
				)
				return s, outcome(s)
			}
		}
	}
}

// abort ends the turn because of err; a done ctx always means cancellation
func (cv *Conversation) abort(ctx context.Context, err error) (transcript.State, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s := cv.reducer.Cancel(cv.State())
		cv.commit(s)
		return s, &transcript.Failure{Kind: transcript.FailureCanceled, Message: "turn canceled", Err: ctxErr}
	}

	f := Classify(err)
	s := cv.reducer.Fail(cv.State(), f)
	cv.commit(s)
	return s, f
}

func (cv *Conversation) commit(s transcript.State) {
	cv.mu.Lock()
	cv.state = s
	observers := append([]Observer(nil), cv.observers...)
	cv.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

func outcome(s transcript.State) error {
	if s.Phase == transcript.PhaseFailed && s.LastError != nil {
		return s.LastError
	}
	return nil
}

// Classify maps a client side error onto the failure taxonomy: a non-2xx
// answer is an upstream failure shown verbatim, anything else is transport.
func Classify(err error) *transcript.Failure {
	if f, ok := transcript.AsFailure(err); ok {
		return f
	}
	var se *StatusError
	if errors.As(err, &se) {
		return &transcript.Failure{Kind: transcript.FailureUpstream, Message: se.Message, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &transcript.Failure{Kind: transcript.FailureCanceled, Message: "turn canceled", Err: err}
	}
	return transcript.Transport(err)
}
