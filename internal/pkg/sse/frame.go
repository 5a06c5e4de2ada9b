package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
)

// DataPrefix 每个帧的前缀
const DataPrefix = "data: "

var ErrClosed = errors.New("sse: writer closed")

// SetStreamHeaders 设置流式响应头，防止代理和浏览器缓冲
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Encode 把 v 编码为一个帧：data: <json>\n\n
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(DataPrefix)

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder 已经写了一个 \n
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Writer 逐帧写出并立即 flush
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
	frames  int
}

// NewWriter w 实现 http.Flusher 时每次写完都会 flush
func NewWriter(w io.Writer) *Writer {
	fw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

// WriteEvent 编码并写出一个帧
func (w *Writer) WriteEvent(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}

	w.mu.Lock()
	w.frames++
	w.mu.Unlock()
	return nil
}

// Write 原样写出字节并 flush
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}
	n, err := w.w.Write(p)
	if err != nil {
		return n, err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return n, nil
}

// Comment 写一个注释行（心跳），客户端会忽略
func (w *Writer) Comment(text string) error {
	_, err := w.Write([]byte(": " + text + "\n\n"))
	return err
}

// Frames 已写出的事件帧数
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close 之后的写入返回 ErrClosed，不会关闭底层 writer
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
