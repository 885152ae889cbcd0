// Package multipart is a forward-only reader for multipart/mixed bundle
// bodies.
//
// Unlike mime/multipart it lets the caller decide how many bytes of a part
// to consume: content is copied or skipped by declared length, and the
// parser only falls back to boundary scanning to find the next header block.
// Nothing is buffered beyond one read window, so parts of any size stream
// straight through.
package multipart

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	chunkSize      = 32 << 10
	maxHeaderLines = 64
	maxBoundaryLen = 200
	delimiterSlack = 32
)

var (
	// ErrBoundaryNotFound is returned when the body ends before the next
	// boundary delimiter.
	ErrBoundaryNotFound = errors.New("multipart: boundary not found")
	// ErrMalformedHeader is returned for header blocks that cannot be parsed.
	ErrMalformedHeader = errors.New("multipart: malformed part header")
	// ErrInvalidBoundary is returned by NewParser for an unusable boundary.
	ErrInvalidBoundary = errors.New("multipart: invalid boundary")
)

// WriteError wraps a failure of the destination writer during StreamContent.
// The part's remaining bytes have already been skipped when it is returned,
// so the stream stays positioned for the next part.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "multipart: write content: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// Header holds one part's headers with lower-cased names.
type Header map[string]string

// Get returns the value of name, case-insensitively.
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Lookup is like Get but also reports whether the header was present.
func (h Header) Lookup(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// Parser walks the parts of one multipart body.
type Parser struct {
	r            *bufio.Reader
	dashBoundary []byte // "--boundary"
	closing      []byte // "--boundary--"
	lfDelim      []byte // "\n--boundary"
	endReached   bool
}

// NewParser returns a Parser reading r with the given boundary token.
func NewParser(r io.Reader, boundary string) (*Parser, error) {
	if boundary == "" || len(boundary) > maxBoundaryLen || strings.ContainsAny(boundary, "\r\n") {
		return nil, ErrInvalidBoundary
	}
	dash := "--" + boundary
	return &Parser{
		r:            bufio.NewReaderSize(r, 2*chunkSize),
		dashBoundary: []byte(dash),
		closing:      []byte(dash + "--"),
		lfDelim:      []byte("\n" + dash),
	}, nil
}

// EndDelimiterReached reports whether the closing boundary has been read.
func (p *Parser) EndDelimiterReached() bool {
	return p.endReached
}

// NextPartHeaders advances to the next boundary and returns the headers of
// the part that follows it. Any unread content of the previous part is
// discarded. It returns io.EOF once the closing boundary is consumed.
func (p *Parser) NextPartHeaders() (Header, error) {
	if p.endReached {
		return nil, io.EOF
	}
	if err := p.seekBoundary(); err != nil {
		return nil, err
	}
	if p.endReached {
		return nil, io.EOF
	}
	return p.readHeaders()
}

func (p *Parser) seekBoundary() error {
	midLine := false
	for {
		line, err := p.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			midLine = true
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		if !midLine {
			trimmed := bytes.TrimRight(line, " \t\r\n")
			switch {
			case bytes.Equal(trimmed, p.closing):
				p.endReached = true
				return nil
			case bytes.Equal(trimmed, p.dashBoundary):
				if err != nil {
					// "--boundary" at EOF opens a part that has no headers.
					return fmt.Errorf("%w: body ends after delimiter", ErrBoundaryNotFound)
				}
				return nil
			}
		}
		midLine = false

		if err != nil {
			return ErrBoundaryNotFound
		}
	}
}

func (p *Parser) readHeaders() (Header, error) {
	h := Header{}
	last := ""
	for n := 0; ; n++ {
		if n > maxHeaderLines {
			return nil, fmt.Errorf("%w: too many header lines", ErrMalformedHeader)
		}

		line, err := p.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: header line too long", ErrMalformedHeader)
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: unexpected end of body", ErrMalformedHeader)
		}
		if err != nil {
			return nil, err
		}

		text := strings.TrimRight(string(line), "\r\n")
		if text == "" {
			return h, nil
		}

		if text[0] == ' ' || text[0] == '\t' {
			if last == "" {
				return nil, fmt.Errorf("%w: continuation without header", ErrMalformedHeader)
			}
			h[last] += " " + strings.TrimSpace(text)
			continue
		}

		name, value, ok := strings.Cut(text, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, text)
		}
		last = strings.ToLower(name)
		h[last] = strings.TrimSpace(value)
	}
}

// StreamContent copies up to n bytes of the current part into dst. It
// returns false with a nil error when the part ends, at a boundary
// delimiter or at end of body, before n bytes were seen; the cursor is then
// left at that delimiter. A failing dst yields a *WriteError. Other errors
// come from the underlying reader.
func (p *Parser) StreamContent(dst io.Writer, n int64) (bool, error) {
	return p.copyN(dst, n)
}

// SkipContent discards up to n bytes of the current part, stopping early at
// a boundary delimiter.
func (p *Parser) SkipContent(n int64) error {
	_, err := p.copyN(nil, n)
	return err
}

func (p *Parser) copyN(dst io.Writer, n int64) (bool, error) {
	var writeErr error
	emit := func(b []byte) {
		if dst == nil || writeErr != nil || len(b) == 0 {
			return
		}
		if _, err := dst.Write(b); err != nil {
			writeErr = &WriteError{Err: err}
		}
	}

	// The peek reaches far enough past the window to classify any delimiter
	// that starts inside it, including its "--" and trailing padding.
	lookahead := len(p.lfDelim) + delimiterSlack

	for remaining := n; remaining > 0; {
		want := int(min(remaining, chunkSize))
		buf, peekErr := p.r.Peek(want + lookahead)

		if at := p.delimiterStart(buf); at >= 0 && at < want {
			emit(buf[:at])
			_, _ = p.r.Discard(at)
			return false, writeErr
		}

		take := min(want, len(buf))
		emit(buf[:take])
		_, _ = p.r.Discard(take)
		remaining -= int64(take)

		if take < want {
			if peekErr != nil && !errors.Is(peekErr, io.EOF) {
				return false, peekErr
			}
			return false, writeErr
		}
	}

	if writeErr != nil {
		return false, writeErr
	}
	return true, nil
}

// delimiterStart returns the offset of the first "\r\n--boundary" or
// "\n--boundary" in buf that is a delimiter line, or -1. A match counts only
// when the boundary is followed by an optional "--", optional spaces or tabs,
// and then a line break or the end of buf; anything else is part content.
func (p *Parser) delimiterStart(buf []byte) int {
	for off := 0; ; {
		i := bytes.Index(buf[off:], p.lfDelim)
		if i < 0 {
			return -1
		}
		i += off
		if endsDelimiterLine(buf[i+len(p.lfDelim):]) {
			if i > 0 && buf[i-1] == '\r' {
				return i - 1
			}
			return i
		}
		off = i + 1
	}
}

func endsDelimiterLine(rest []byte) bool {
	rest = bytes.TrimPrefix(rest, []byte("--"))
	rest = bytes.TrimLeft(rest, " \t")
	switch {
	case len(rest) == 0:
		return true
	case rest[0] == '\n':
		return true
	case rest[0] == '\r':
		return len(rest) == 1 || rest[1] == '\n'
	}
	return false
}
