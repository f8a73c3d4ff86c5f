package compiler

import (
	"bytes"
	"unicode/utf8"
)

// cappedBuffer keeps at most limit bytes and silently drops the rest so a
// chatty compiler cannot exhaust memory. A limit <= 0 means unbounded.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = b.truncated || n > 0
		return n, nil
	}
	if int64(n) > room {
		p = p[:room]
		b.truncated = true
	}
	b.buf.Write(p)
	return n, nil
}

// Bytes returns the captured output. When the capture was cut short, a rune
// split at the boundary is dropped so truncation alone never produces
// invalid UTF-8.
func (b *cappedBuffer) Bytes() []byte {
	data := b.buf.Bytes()
	if !b.truncated {
		return data
	}
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				data = data[:i]
			}
			break
		}
	}
	return data
}
