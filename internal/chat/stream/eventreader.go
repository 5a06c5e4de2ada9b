package stream

import (
	"context"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lk2023060901/agent-chat/internal/chat/types"
	"github.com/lk2023060901/agent-chat/internal/pkg/logger"
)

const maxLoggedLine = 200

// EventReader turns a byte stream into StreamEvents. Malformed frames are
// logged and skipped; they never end the stream.
type EventReader struct {
	lines   *LineReader
	log     *logger.Logger
	frames  int
	dropped int
}

// NewEventReader wraps r. A nil logger means the global one.
func NewEventReader(r io.Reader, log *logger.Logger, opts ...LineReaderOption) *EventReader {
	if log == nil {
		log = logger.L()
	}
	return &EventReader{
		lines: NewLineReader(r, opts...),
		log:   log.Named("stream"),
	}
}

// Next returns the next valid event; io.EOF at the end of a clean stream,
// otherwise the error reported by the LineReader.
func (er *EventReader) Next(ctx context.Context) (types.StreamEvent, error) {
	for {
		line, err := er.lines.Next(ctx)
		if err != nil {
			return types.StreamEvent{}, err
		}

		ev, ok, err := ParseLine(line)
		if err != nil {
			er.dropped++
			er.log.WithContext(ctx).Warn("drop malformed frame",
				zap.Error(err),
				zap.String("line", truncate(line, maxLoggedLine)),
			)
			continue
		}
		if !ok {
			continue
		}

		er.frames++
		er.log.WithContext(ctx).Debug("frame", zap.String("type", string(ev.Kind)))
		return ev, nil
	}
}

// Frames returns how many valid events have been returned
func (er *EventReader) Frames() int {
	return er.frames
}

// Dropped returns how many frames were discarded as malformed
func (er *EventReader) Dropped() int {
	return er.dropped
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
