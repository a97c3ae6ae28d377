package status

import "errors"

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest           = NewError(BadRequest, "bad request")
	ErrBadChunk             = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBadContentLength     = NewError(BadRequest, "malformed Content-Length value")
	ErrURIDecoding          = NewError(BadRequest, "invalid urlencoded sequence")
	ErrNotFound             = NewError(NotFound, "not found")
	ErrInternalServerError  = NewError(InternalServerError, "internal server error")
	ErrBodyTooLarge         = NewError(RequestEntityTooLarge, "request body is too large")
	ErrTooManyHeaders       = NewError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrHeaderFieldsTooLarge = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrUnsupportedProtocol  = NewError(HTTPVersionNotSupported, "HTTP version not supported")
)

// Kind classifies a connection-fatal failure.
type Kind uint8

const (
	// KindSyntax means the request head couldn't be tokenized.
	KindSyntax Kind = iota + 1
	// KindMalformed means a header value or the path couldn't be interpreted: non-numeric
	// Content-Length, a bad chunk size, an undecodable path.
	KindMalformed
	// KindLimit means a configured limit was exceeded.
	KindLimit
	// KindIO is a read or write failure on the socket.
	KindIO
	// KindZeroWrite means the socket accepted zero bytes while data was still pending.
	KindZeroWrite
	// KindRouting means the router had nowhere to dispatch the request.
	KindRouting
	// KindPanic means a handler panicked. The connection is answered with 500 and closed.
	KindPanic
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindMalformed:
		return "malformed"
	case KindLimit:
		return "limit"
	case KindIO:
		return "io"
	case KindZeroWrite:
		return "zero-write"
	case KindRouting:
		return "routing"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ConnError is the only error a connection surfaces to its acceptor. Every instance means
// the connection is torn down; other connections aren't affected.
type ConnError struct {
	Kind Kind
	Err  error
}

func NewConnError(kind Kind, err error) *ConnError {
	return &ConnError{Kind: kind, Err: err}
}

func (c *ConnError) Error() string {
	return c.Kind.String() + ": " + c.Err.Error()
}

func (c *ConnError) Unwrap() error {
	return c.Err
}

// KindOf returns the kind of the connection error wrapped into err, or zero.
func KindOf(err error) Kind {
	var connErr *ConnError
	if errors.As(err, &connErr) {
		return connErr.Kind
	}

	return 0
}
