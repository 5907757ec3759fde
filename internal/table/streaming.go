package table

// streaming.go wraps raw file readers before CSV parsing:
//
//   - bomSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) written by Excel
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering the file
//   - CountingReader tracks bytes consumed so jobs can report progress
//
// Use Sanitize to apply the first two in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader removes the BOM on first read.
type bomSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer rewrites invalid UTF-8 in place. A multi-byte rune split
// across two reads is held back in pending until the rest arrives.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:copy(s.pending, s.pending[offset:])]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if !atEOF {
		if cut := incompleteTail(data); cut > 0 {
			s.pending = append(s.pending, data[len(data)-cut:]...)
			data = data[:len(data)-cut]
		}
	}
	if utf8.Valid(data) {
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		write += copy(data[write:], data[read:read+size])
		read += size
	}
	return write
}

// incompleteTail returns how many trailing bytes start a rune that is not
// yet complete.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue // continuation byte
		}
		if b < 0xC0 {
			return 0
		}
		need := 2
		switch {
		case b >= 0xF0:
			need = 4
		case b >= 0xE0:
			need = 3
		}
		if i < need {
			return i
		}
		return 0
	}
	return 0
}

// Sanitize strips a BOM and replaces invalid UTF-8 so encoding/csv sees
// clean text. Memory use is bounded by the buffer size, not the file size.
func Sanitize(r io.Reader) io.Reader {
	return &utf8Sanitizer{
		r:       &bomSkippingReader{r: bufio.NewReader(r)},
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// CountingReader tracks bytes read for progress reporting.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader wraps r; total may be 0 when the size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

// Read implements io.Reader.
func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns read progress as 0-100, or 0 when Total is unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(min(c.BytesRead*100/c.Total, 100))
}
