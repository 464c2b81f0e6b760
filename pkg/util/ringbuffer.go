package util

import (
	"sync"
)

// TailBuffer is an io.Writer that keeps only the last N bytes written to it.
type TailBuffer struct {
	mu      sync.Mutex
	buf     []byte
	pos     int
	full    bool
	dropped int64
}

func NewTailBuffer(size int) *TailBuffer {
	if size <= 0 {
		size = 1
	}
	return &TailBuffer{buf: make([]byte, size)}
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if len(p) > len(b.buf) {
		b.dropped += int64(len(p) - len(b.buf))
		p = p[len(p)-len(b.buf):]
	}
	for len(p) > 0 {
		if b.full {
			b.dropped += int64(min(len(p), len(b.buf)-b.pos))
		}
		c := copy(b.buf[b.pos:], p)
		p = p[c:]
		b.pos += c
		if b.pos == len(b.buf) {
			b.pos = 0
			b.full = true
		}
	}
	return n, nil
}

// Dropped is the number of bytes that have been overwritten.
func (b *TailBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *TailBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.buf)
	}
	return b.pos
}

func (b *TailBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]byte(nil), b.buf[:b.pos]...)
	}
	out := make([]byte, 0, len(b.buf))
	out = append(out, b.buf[b.pos:]...)
	return append(out, b.buf[:b.pos]...)
}

func (b *TailBuffer) String() string {
	return string(b.Bytes())
}
