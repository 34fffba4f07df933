// Package sse holds the byte-level plumbing shared by the streaming
// adapters: a resumable line assembler that tolerates arbitrary chunk
// boundaries in the HTTP body.
package sse

import (
	"bytes"
	"strings"
)

// LineBuffer accumulates raw body bytes and yields complete lines. Bytes
// after the last newline are retained until the next Feed, so a frame split
// across two network reads parses the same as one delivered whole.
type LineBuffer struct {
	buf []byte
}

// Feed appends a chunk and returns every complete line it closed off.
// Lines are trimmed; blank lines and ":"-prefixed SSE comments are dropped.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			return lines
		}
		line := strings.TrimSpace(string(b.buf[:i]))
		b.buf = b.buf[i+1:]

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
}

// Residual returns whatever trails the last newline, trimmed. A non-empty
// residual at body close means a frame was cut off mid-line.
func (b *LineBuffer) Residual() string {
	return strings.TrimSpace(string(b.buf))
}

// Data strips the SSE data-line prefix. The second return is false for
// non-data lines (e.g. Anthropic's "event:" lines), which callers skip.
func Data(line string) (string, bool) {
	if payload, ok := strings.CutPrefix(line, "data: "); ok {
		return payload, true
	}
	// Tolerate the prefix without the space; some servers emit "data:{...}".
	if payload, ok := strings.CutPrefix(line, "data:"); ok {
		return strings.TrimSpace(payload), true
	}
	return "", false
}
