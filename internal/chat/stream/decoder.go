package stream

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const decodeBufSize = 4096

// LineDecoder 把任意切分的字节块还原成完整的文本行。
//
// 不完整的多字节字符留在 pending 里等下一个块；还没遇到换行的文本留在 line 里。
// 行按 '\n' 切分且不包含换行符本身，其余字符（包括 '\r'）原样保留，
// 所以把输出的行用 '\n' 拼回去就是原始解码文本，与块边界无关。
// 非法 UTF-8 序列替换为 U+FFFD。
//
// LineDecoder 不是并发安全的，一个流一个实例。
type LineDecoder struct {
	dec     *encoding.Decoder
	pending []byte // 未解码完的字节（最多一个不完整字符）
	line    []byte // 未结束的一行
	buf     []byte
}

// NewLineDecoder creates a UTF-8 line decoder
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{
		dec: unicode.UTF8.NewDecoder(),
		buf: make([]byte, decodeBufSize),
	}
}

// Write 喂入一个字节块，返回因此变得完整的行（可能为空）
func (d *LineDecoder) Write(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.decode(chunk, false)
	return d.split()
}

// Flush 标记流结束：剩余字节按 EOF 解码，未结束的非空行作为最后一行返回
func (d *LineDecoder) Flush() []string {
	d.decode(nil, true)
	lines := d.split()
	if len(d.line) > 0 {
		lines = append(lines, string(d.line))
		d.line = d.line[:0]
	}
	return lines
}

// Reset 丢弃所有缓存状态，只应在新流开始时调用
func (d *LineDecoder) Reset() {
	d.dec.Reset()
	d.pending = d.pending[:0]
	d.line = d.line[:0]
}

// Buffered 返回尚未输出的字节数（pending + 未结束行）
func (d *LineDecoder) Buffered() int {
	return len(d.pending) + len(d.line)
}

func (d *LineDecoder) decode(chunk []byte, atEOF bool) {
	src := chunk
	if len(d.pending) > 0 {
		src = make([]byte, 0, len(d.pending)+len(chunk))
		src = append(src, d.pending...)
		src = append(src, chunk...)
		d.pending = d.pending[:0]
	}

	for {
		nDst, nSrc, err := d.dec.Transform(d.buf, src, atEOF)
		d.line = append(d.line, d.buf[:nDst]...)
		src = src[nSrc:]

		if err == transform.ErrShortDst {
			if nDst == 0 && nSrc == 0 {
				d.buf = make([]byte, 2*len(d.buf))
			}
			continue
		}
		// ErrShortSrc: 末尾是不完整字符，留到下一块
		break
	}

	d.pending = append(d.pending, src...)
}

func (d *LineDecoder) split() []string {
	var lines []string
	rest := d.line
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(rest[:i]))
		rest = rest[i+1:]
	}
	if len(lines) > 0 {
		d.line = append(d.line[:0], rest...)
	}
	return lines
}
