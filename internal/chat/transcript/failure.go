package transcript

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnInProgress a new message was submitted while a turn is open
	ErrTurnInProgress = errors.New("transcript: a turn is already in progress")
	// ErrAlreadyStreaming a second start arrived for the open turn
	ErrAlreadyStreaming = errors.New("transcript: assistant message already streaming")
	// ErrNoTurn an event arrived while no turn is open
	ErrNoTurn = errors.New("transcript: no turn in progress")
	// ErrEmptyMessage neither text nor attachments were given
	ErrEmptyMessage = errors.New("transcript: empty message")
)

// FailureKind classifies user visible failures
type FailureKind string

const (
	// FailureTransport connection refused, DNS, timeouts, reset
	FailureTransport FailureKind = "transport"
	// FailureUpstream non-2xx status, error event, stream closed with nothing
	FailureUpstream FailureKind = "upstream"
	// FailureCanceled the caller gave up on the turn
	FailureCanceled FailureKind = "canceled"
)

const (
	errorPrefix   = "Sorry, something went wrong:\n\n"
	transportHint = "\n\nHint: check your network connection and that the agent service is running."
)

// Failure ends a turn
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil && f.Message == "" {
		return fmt.Sprintf("%s failure: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Text is what the user sees in the error message appended to the transcript.
// Upstream messages are shown verbatim; transport failures get a hint.
func (f *Failure) Text() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Kind == FailureTransport {
		return errorPrefix + msg + transportHint
	}
	return errorPrefix + msg
}

// Transport builds a transport failure from err
func Transport(err error) *Failure {
	return &Failure{Kind: FailureTransport, Message: err.Error(), Err: err}
}

// Upstream builds an upstream failure with a verbatim message
func Upstream(message string) *Failure {
	return &Failure{Kind: FailureUpstream, Message: message}
}

// AsFailure extracts a *Failure from err
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
