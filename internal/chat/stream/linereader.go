package stream

import (
	"context"
	"errors"
	"io"
)

const defaultChunkSize = 4096

// LineReader pulls byte chunks from r through a LineDecoder and hands out
// complete lines one at a time. Reading only happens when the caller asks for
// the next line, so unread data never piles up in memory.
type LineReader struct {
	r       io.Reader
	dec     *LineDecoder
	chunk   []byte
	queue   []string
	err     error // sticky: io.EOF or the read error
	onChunk func(n int)
}

// LineReaderOption configures a LineReader
type LineReaderOption func(*LineReader)

// WithChunkSize sets the size of each Read call
func WithChunkSize(size int) LineReaderOption {
	return func(lr *LineReader) {
		if size > 0 {
			lr.chunk = make([]byte, size)
		}
	}
}

// WithChunkHook is called with the size of every chunk read
func WithChunkHook(fn func(n int)) LineReaderOption {
	return func(lr *LineReader) {
		lr.onChunk = fn
	}
}

func NewLineReader(r io.Reader, opts ...LineReaderOption) *LineReader {
	lr := &LineReader{
		r:     r,
		dec:   NewLineDecoder(),
		chunk: make([]byte, defaultChunkSize),
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Next returns the next complete line. It returns io.EOF after the last line
// of a cleanly ended stream, ctx.Err() as soon as ctx is done, or the
// underlying read error. Lines that were complete before a read error are
// still returned first; a half-received line is discarded.
func (lr *LineReader) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if len(lr.queue) > 0 {
			line := lr.queue[0]
			lr.queue = lr.queue[1:]
			return line, nil
		}
		if lr.err != nil {
			return "", lr.err
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			if lr.onChunk != nil {
				lr.onChunk(n)
			}
			lr.queue = append(lr.queue, lr.dec.Write(lr.chunk[:n])...)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			lr.queue = append(lr.queue, lr.dec.Flush()...)
			lr.err = io.EOF
		default:
			// body 被关闭通常是因为 ctx 取消
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			lr.err = err
		}
	}
}
