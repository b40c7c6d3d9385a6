package core

// streaming.go normalizes uploaded text files before they reach the parser.
//
// Spreadsheet exports saved on Windows often start with a UTF-8 BOM and may
// contain bytes from a legacy code page. The BOM would otherwise end up glued
// to the first order id, and invalid bytes would be stored verbatim, so both
// are handled while the body is streamed rather than after it is buffered.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrImportTooLarge is returned when an uploaded file exceeds the size limit.
var ErrImportTooLarge = errors.New("import file too large")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SkipBOM returns a reader positioned after a leading UTF-8 BOM, if any.
func SkipBOM(r io.Reader) *bufio.Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// UTF8Sanitizer replaces each byte that is not part of a valid UTF-8
// sequence with '?'. A genuine U+FFFD in the input is passed through.
type UTF8Sanitizer struct {
	src     *bufio.Reader
	pending []byte // encoded rune not yet handed to the caller
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &UTF8Sanitizer{src: br, pending: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader. It never blocks on the source once it has
// produced at least one byte.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) > 0 {
			c := copy(p[n:], s.pending)
			s.pending = s.pending[c:]
			n += c
			continue
		}
		if n > 0 && s.src.Buffered() == 0 {
			break
		}

		r, size, err := s.src.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if r == utf8.RuneError && size == 1 {
			r = '?'
		}
		s.pending = utf8.AppendRune(s.pending[:0], r)
	}
	return n, nil
}

// NewImportReader strips a BOM and sanitizes UTF-8 on the fly.
func NewImportReader(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(SkipBOM(r))
}

// ReadImportText reads at most limit bytes of import text from r. A limit
// of zero or less disables the check.
func ReadImportText(r io.Reader, limit int64) (string, error) {
	var lr *io.LimitedReader
	if limit > 0 {
		lr = &io.LimitedReader{R: r, N: limit + 1}
		r = lr
	}

	data, err := io.ReadAll(NewImportReader(r))
	if err != nil {
		return "", fmt.Errorf("read import: %w", err)
	}
	// The limit applies to the raw body, before the BOM is stripped.
	if lr != nil && lr.N == 0 {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrImportTooLarge, limit)
	}
	return string(data), nil
}
