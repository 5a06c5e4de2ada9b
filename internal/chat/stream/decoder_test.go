package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(d *LineDecoder, chunks ...[]byte) []string {
	var lines []string
	for _, c := range chunks {
		lines = append(lines, d.Write(c)...)
	}
	return append(lines, d.Flush()...)
}

const multiByteStream = "data: {\"type\":\"start\",\"thread_id\":\"t-1\"}\n\n" +
	"data: {\"type\":\"content\",\"content\":\"稻瘟病 🌾 éclair\"}\n\n" +
	"data: {\"type\":\"end\"}\n\n"

func TestLineDecoderSplitAtEveryOffset(t *testing.T) {
	src := []byte(multiByteStream)
	want := decodeAll(NewLineDecoder(), src)
	require.Equal(t, []string{
		`data: {"type":"start","thread_id":"t-1"}`, "",
		`data: {"type":"content","content":"稻瘟病 🌾 éclair"}`, "",
		`data: {"type":"end"}`, "",
	}, want)

	for i := 0; i <= len(src); i++ {
		got := decodeAll(NewLineDecoder(), src[:i], src[i:])
		assert.Equal(t, want, got, "split at %d", i)
	}
}

func TestLineDecoderThreeWaySplit(t *testing.T) {
	src := []byte("data: 🌾🌾\n")
	want := []string{"data: 🌾🌾"}
	for i := 0; i <= len(src); i++ {
		for j := i; j <= len(src); j++ {
			got := decodeAll(NewLineDecoder(), src[:i], src[i:j], src[j:])
			assert.Equal(t, want, got, "split at %d,%d", i, j)
		}
	}
}

func TestLineDecoderByteByByte(t *testing.T) {
	src := []byte(multiByteStream)
	chunks := make([][]byte, len(src))
	for i := range src {
		chunks[i] = src[i : i+1]
	}
	assert.Equal(t, decodeAll(NewLineDecoder(), src), decodeAll(NewLineDecoder(), chunks...))
}

func TestLineDecoderReconstructsText(t *testing.T) {
	tests := []string{
		"a\nb\nc",
		"a\n\n\nb",
		"\r\nline with crlf\r\ntail",
		"单行没有换行",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			src := []byte(text)
			lines := decodeAll(NewLineDecoder(), src[:len(src)/2], src[len(src)/2:])
			assert.Equal(t, text, strings.Join(lines, "\n"))
		})
	}
}

func TestLineDecoderPendingLine(t *testing.T) {
	d := NewLineDecoder()

	assert.Empty(t, d.Write([]byte(`data: {"type":"con`)))
	assert.Equal(t, len(`data: {"type":"con`), d.Buffered())

	lines := d.Write([]byte("tent\",\"content\":\"A\"}\n\n"))
	assert.Equal(t, []string{`data: {"type":"content","content":"A"}`, ""}, lines)
	assert.Zero(t, d.Buffered())
	assert.Empty(t, d.Flush())
}

func TestLineDecoderCarriesIncompleteRune(t *testing.T) {
	d := NewLineDecoder()
	crop := []byte("稻") // 3 bytes

	assert.Empty(t, d.Write(crop[:2]))
	assert.Equal(t, 2, d.Buffered())
	assert.Equal(t, []string{"稻"}, append(d.Write(append(crop[2:], '\n')), d.Flush()...))
}

func TestLineDecoderInvalidBytes(t *testing.T) {
	d := NewLineDecoder()
	lines := decodeAll(d, []byte{'a', 0xff, 'b', '\n'})
	require.Len(t, lines, 1)
	assert.Equal(t, "a�b", lines[0])

	// 流结束时残留的半个字符不会丢失，也不会原样输出非法字节
	d = NewLineDecoder()
	lines = decodeAll(d, []byte{'x', 0xe7, 0xa8})
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "x"))
	assert.Contains(t, lines[0], "�")
	assert.Zero(t, d.Buffered())
}

func TestLineDecoderLargeChunk(t *testing.T) {
	line := strings.Repeat("稻", 5000) // larger than the internal buffer
	lines := decodeAll(NewLineDecoder(), []byte(line+"\n"))
	assert.Equal(t, []string{line}, lines)
}

func TestLineDecoderReset(t *testing.T) {
	d := NewLineDecoder()
	d.Write([]byte{'p', 0xe7})
	d.Reset()
	assert.Zero(t, d.Buffered())
	assert.Equal(t, []string{"fresh"}, decodeAll(d, []byte("fresh\n")))
}
