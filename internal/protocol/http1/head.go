package http1

import (
	"bytes"

	"github.com/indigo-web/kiln/http/proto"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/internal/buffer"
)

// HeaderSpan locates a single header field line. The name is not lower-cased, the value is
// trimmed of surrounding whitespace.
type HeaderSpan struct {
	Name, Value buffer.Span
}

// Head is the result of tokenizing a request head. Spans are offsets into the data passed
// into ParseHead and are valid as long as the data stays untouched.
type Head struct {
	// Complete is false when the data ends before the empty line terminating the head.
	Complete bool
	// Consumed is the length of the head, including leading empty lines and the
	// terminating empty line.
	Consumed int
	Method   buffer.Span
	Path     buffer.Span
	Proto    buffer.Span
	Headers  []HeaderSpan
}

// ParseHead tokenizes a request line with its header block. Header spans are appended to
// the passed slice, whose capacity bounds the number of header lines: exceeding it results
// in status.ErrTooManyHeaders. An incomplete head isn't an error, the call must be just
// repeated when more data arrives.
func ParseHead(data []byte, headers []HeaderSpan) (head Head, err error) {
	offset := 0

	// RFC 9112, 2.2: a server SHOULD ignore at least one empty line received
	// prior to the request-line.
	for offset < len(data) {
		switch data[offset] {
		case '\r':
			if offset+1 >= len(data) {
				return head, nil
			}

			if data[offset+1] != '\n' {
				return head, status.ErrBadRequest
			}

			offset += 2
			continue
		case '\n':
			offset++
			continue
		}

		break
	}

	line, next, ok := nextLine(data, offset)
	if !ok {
		return head, nil
	}

	if err = parseRequestLine(data, line, &head); err != nil {
		return head, err
	}

	headers = headers[:0]

	for {
		offset = next
		line, next, ok = nextLine(data, offset)
		if !ok {
			return head, nil
		}

		if line.Len() == 0 {
			break
		}

		if len(headers) == cap(headers) {
			return head, status.ErrTooManyHeaders
		}

		header, err := parseHeaderLine(data, line)
		if err != nil {
			return head, err
		}

		headers = append(headers, header)
	}

	head.Complete = true
	head.Consumed = next
	head.Headers = headers

	return head, nil
}

// nextLine returns the span of the line starting at offset without its terminator, and the
// offset right after the terminator. Both CRLF and bare LF are accepted.
func nextLine(data []byte, offset int) (line buffer.Span, next int, ok bool) {
	lf := bytes.IndexByte(data[offset:], '\n')
	if lf == -1 {
		return line, 0, false
	}

	end := offset + lf
	next = end + 1
	if end > offset && data[end-1] == '\r' {
		end--
	}

	return buffer.Span{Start: offset, End: end}, next, true
}

func parseRequestLine(data []byte, line buffer.Span, head *Head) error {
	raw := data[line.Start:line.End]

	methodEnd := bytes.IndexByte(raw, ' ')
	if methodEnd <= 0 || !isToken(raw[:methodEnd]) {
		return status.ErrBadRequest
	}

	pathEnd := bytes.IndexByte(raw[methodEnd+1:], ' ')
	if pathEnd <= 0 {
		return status.ErrBadRequest
	}

	pathEnd += methodEnd + 1
	version := raw[pathEnd+1:]

	if proto.FromBytes(version) == proto.Unknown {
		if bytes.HasPrefix(version, []byte("HTTP/")) {
			return status.ErrUnsupportedProtocol
		}

		return status.ErrBadRequest
	}

	head.Method = buffer.Span{Start: line.Start, End: line.Start + methodEnd}
	head.Path = buffer.Span{Start: line.Start + methodEnd + 1, End: line.Start + pathEnd}
	head.Proto = buffer.Span{Start: line.Start + pathEnd + 1, End: line.End}

	return nil
}

func parseHeaderLine(data []byte, line buffer.Span) (header HeaderSpan, err error) {
	raw := data[line.Start:line.End]

	colon := bytes.IndexByte(raw, ':')
	if colon <= 0 || !isToken(raw[:colon]) {
		// covers obsolete line folding as well, since a name can't start with a whitespace
		return header, status.ErrBadRequest
	}

	start, end := colon+1, len(raw)
	for start < end && isWhitespace(raw[start]) {
		start++
	}

	for end > start && isWhitespace(raw[end-1]) {
		end--
	}

	return HeaderSpan{
		Name:  buffer.Span{Start: line.Start, End: line.Start + colon},
		Value: buffer.Span{Start: line.Start + start, End: line.Start + end},
	}, nil
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

// tokenChars are the tchar of RFC 9110, 5.6.2.
var tokenChars = func() (table [256]bool) {
	for _, c := range []byte("!#$%&'*+-.^_`|~") {
		table[c] = true
	}

	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}

	for c := 'a'; c <= 'z'; c++ {
		table[c] = true
		table[c-'a'+'A'] = true
	}

	return table
}()

func isToken(b []byte) bool {
	for _, c := range b {
		if !tokenChars[c] {
			return false
		}
	}

	return true
}
