package roster

// streaming.go provides reader wrappers for CSV input:
//
//   - BOMSkippingReader: drops the UTF-8 BOM (0xEF 0xBB 0xBF) Excel puts on
//     "CSV UTF-8" exports
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?' so a roster
//     saved in a legacy code page still parses
//
// Use WrapCSVReader to apply both in the correct order.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes a leading UTF-8 byte order mark.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, err := b.r.Peek(len(utf8BOM)); err == nil &&
			head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' as data streams
// through. Multi-byte sequences split across reads are carried over.
type UTF8Sanitizer struct {
	r       io.Reader
	pending []byte
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	atEOF := err == io.EOF
	write := 0
	for read := 0; read < n; {
		if p[read] < utf8.RuneSelf {
			p[write] = p[read]
			write++
			read++
			continue
		}

		if !atEOF && !utf8.FullRune(p[read:n]) {
			s.pending = append(s.pending, p[read:n]...)
			break
		}

		r, size := utf8.DecodeRune(p[read:n])
		if r == utf8.RuneError && size == 1 {
			p[write] = '?'
			write++
			read++
			continue
		}
		copy(p[write:], p[read:read+size])
		write += size
		read += size
	}

	if write == 0 && err == nil {
		// Everything was carried over; ask for more instead of returning 0, nil.
		return s.Read(p)
	}
	return write, err
}

// WrapCSVReader applies BOM removal then UTF-8 sanitizing.
func WrapCSVReader(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
