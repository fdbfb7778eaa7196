package refresh

import (
	"errors"

	"github.com/harveysanders/picoclock/rtcclock/rtc"
)

// Capacity is the number of bytes a Buffer holds.
const Capacity = 24

// ErrBufferFull is returned for a write that would not fit. The buffer is
// left unchanged.
var ErrBufferFull = errors.New("refresh: display buffer full")

// Buffer is fixed-capacity text storage for one frame. The zero value is an
// empty buffer; it never allocates.
type Buffer struct {
	b [Capacity]byte
	n int
}

// Write appends all of p, or nothing if p does not fit.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > Capacity-b.n {
		return 0, ErrBufferFull
	}
	b.n += copy(b.b[b.n:], p)
	return len(p), nil
}

// WriteString appends all of s, or nothing if s does not fit.
func (b *Buffer) WriteString(s string) (int, error) {
	if len(s) > Capacity-b.n {
		return 0, ErrBufferFull
	}
	b.n += copy(b.b[b.n:], s)
	return len(s), nil
}

// AppendDateTime formats dt into the buffer. It fails without writing
// anything if dt is not a valid calendar value or does not fit.
func (b *Buffer) AppendDateTime(dt rtc.DateTime) error {
	if err := dt.Validate(); err != nil {
		return err
	}
	var text [rtc.TextLen]byte
	_, err := b.Write(dt.AppendText(text[:0]))
	return err
}

// Bytes returns the buffered text. It aliases the buffer and is valid until
// the next modification.
func (b *Buffer) Bytes() []byte { return b.b[:b.n] }

func (b *Buffer) String() string { return string(b.b[:b.n]) }

func (b *Buffer) Len() int { return b.n }

func (b *Buffer) Reset() { b.n = 0 }
