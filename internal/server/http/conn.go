package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/method"
	"github.com/indigo-web/kiln/http/proto"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/internal/buffer"
	"github.com/indigo-web/kiln/internal/protocol/http1"
	"github.com/indigo-web/kiln/internal/telemetry"
	"github.com/indigo-web/kiln/internal/uridecode"
	"github.com/indigo-web/kiln/router"
	"github.com/indigo-web/utils/strcomp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type closeWriter interface {
	CloseWrite() error
}

// Conn drives a single client connection: it reads, parses requests, dispatches them
// and writes the responses back, until the peer goes away, stays idle for too long
// or something goes wrong.
type Conn struct {
	cfg       *config.Config
	conn      net.Conn
	router    router.Router
	logger    *slog.Logger
	telemetry *telemetry.Telemetry
	ctx       context.Context

	buff       *buffer.Buffer
	headers    []http1.HeaderSpan
	decoder    http1.ChunkDecoder
	serializer *http1.Serializer
	request    *http.Request

	readState    readState
	processState processState
	// bodySize is how many bytes of a Content-Length framed body are still to be read.
	bodySize uint64
	// received is how many payload bytes of a chunked body were read so far.
	received uint64
	// pending is the handler to be called in eProcessing.
	pending      http.Handler
	continuation http.Handler
	keepAlive    bool
	closing      bool
	span         trace.Span
}

func NewConn(
	cfg *config.Config, conn net.Conn, r router.Router, logger *slog.Logger, tel *telemetry.Telemetry,
) *Conn {
	return &Conn{
		cfg:        cfg,
		conn:       conn,
		router:     r,
		logger:     logger,
		telemetry:  tel,
		ctx:        context.Background(),
		buff:       buffer.New(cfg.NET.ReadBufferSize),
		headers:    make([]http1.HeaderSpan, 0, cfg.Headers.MaxCount),
		decoder:    http1.NewChunkDecoder(cfg),
		serializer: http1.NewSerializer(cfg),
		request:    http.NewRequest(cfg, http.NewResponse(), conn.RemoteAddr()),
	}
}

// Serve runs the connection until it's done. The peer closing the connection or an idle
// timeout aren't errors, everything else is returned as *status.ConnError. The net.Conn
// itself is left open.
func (c *Conn) Serve(ctx context.Context) error {
	c.ctx = ctx

	for {
		if c.processState == eProcessing {
			if err := c.process(); err != nil {
				return c.fail(err)
			}

			if c.closing {
				return nil
			}

			continue
		}

		progressed, err := c.advance()
		if err != nil {
			return c.fail(err)
		}

		if progressed {
			continue
		}

		if c.buff.Full() {
			c.buff.Grow(c.cfg.NET.BufferGrowth)
		}

		done, err := c.read()
		if err != nil {
			return c.fail(err)
		}

		if done {
			c.endSpan(nil)
			return nil
		}
	}
}

// advance makes a single step over the buffered data. It returns false when more data is
// required.
func (c *Conn) advance() (progressed bool, err error) {
	switch c.readState {
	case eRequest:
		if c.buff.Len() == 0 {
			return false, nil
		}

		head, err := http1.ParseHead(c.buff.Bytes(), c.headers)
		if err != nil {
			return false, classify(err)
		}

		if !head.Complete {
			if c.buff.Len() > c.cfg.Headers.MaxSize {
				return false, classify(status.ErrHeaderFieldsTooLarge)
			}

			return false, nil
		}

		return true, c.onHead(head)
	case eBody:
		if c.continuation == nil {
			// nobody is interested in the body, so it's dropped as it arrives
			n := min(uint64(c.buff.Len()), c.bodySize)
			c.buff.Consume(int(n))
			c.bodySize -= n
			if c.bodySize > 0 {
				return false, nil
			}

			c.readState = eRequest
			return true, nil
		}

		if uint64(c.buff.Len()) < c.bodySize {
			return false, nil
		}

		c.readState = eRequest
		c.request.Body = c.buff.Split(int(c.bodySize))
		c.request.IsLast = true
		c.bodySize = 0
		c.dispatch(c.continuation)

		return true, nil
	case eChunk:
		if c.buff.Len() == 0 {
			return false, nil
		}

		chunk, consumed, err := c.decoder.Decode(c.buff.Bytes())
		if err != nil {
			return false, classify(err)
		}

		if !chunk.Complete {
			return false, nil
		}

		if c.received += uint64(chunk.Payload.Len()); c.received > c.cfg.Body.MaxSize {
			return false, classify(status.ErrBodyTooLarge)
		}

		if chunk.IsLast {
			c.readState = eRequest
		}

		if c.continuation != nil {
			c.request.Body = append(c.request.Body[:0], c.buff.Slice(chunk.Payload)...)
			c.request.IsLast = chunk.IsLast
			c.dispatch(c.continuation)
		}

		c.buff.Consume(consumed)

		return true, nil
	default:
		panic("unreachable code")
	}
}

// onHead fills the request from the parsed head and dispatches it. Everything the request
// keeps is copied out of the buffer before the head is consumed.
func (c *Conn) onHead(head http1.Head) error {
	request, buff := c.request, c.buff

	request.Reset()
	c.readState = eBody
	c.bodySize, c.received = 0, 0
	c.continuation = nil

	request.RawMethod = buff.String(head.Method)
	request.Method = method.Parse(request.RawMethod)
	request.Proto = proto.FromBytes(buff.Slice(head.Proto))

	rawPath := buff.Slice(head.Path)
	if query := bytes.IndexByte(rawPath, '?'); query != -1 {
		request.Query = string(rawPath[query+1:])
		rawPath = rawPath[:query]
	}

	if len(rawPath) == 0 {
		return classify(status.ErrBadRequest)
	}

	path, err := uridecode.Decode(rawPath, nil)
	if err != nil {
		return classify(err)
	}

	request.RawPath = string(rawPath)
	request.Path = string(path)

	var chunked bool

	for _, header := range head.Headers {
		// the head is consumed right after, so it's safe to lower-case it in place
		name := buff.Slice(header.Name)
		for i, char := range name {
			if char >= 'A' && char <= 'Z' {
				name[i] = char | 0x20
			}
		}

		key, value := string(name), buff.String(header.Value)
		request.Headers.Add(key, value)

		switch key {
		case "content-length":
			length, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return classify(status.ErrBadContentLength)
			}

			if length > c.cfg.Body.MaxSize {
				return classify(status.ErrBodyTooLarge)
			}

			c.bodySize = length
		case "transfer-encoding":
			chunked = isChunked(value)
		}
	}

	if chunked {
		c.readState = eChunk
		c.bodySize = 0
	}

	c.keepAlive = request.KeepAlive()
	buff.Consume(head.Consumed)

	handler, err := c.router.Find(request)
	if err != nil {
		if status.KindOf(err) == 0 {
			err = status.NewConnError(status.KindRouting, err)
		}

		return err
	}

	request.Ctx, c.span = c.telemetry.StartRequest(c.ctx, request.RawMethod, request.Path)
	c.logger.Debug("request", "method", request.RawMethod, "path", request.Path)
	c.dispatch(handler)

	return nil
}

func (c *Conn) dispatch(handler http.Handler) {
	c.pending = handler
	c.processState = eProcessing
}

// process calls the pending handler. The response is written once the request is
// done with, i.e. no body callback is installed, or the last body payload was delivered
// into it.
func (c *Conn) process() error {
	handler := c.pending
	c.pending = nil
	response, err := c.call(handler)
	c.processState = eReady

	if err != nil {
		// whatever the handler left in the response is discarded
		c.endSpan(err)
		if werr := c.write(c.request.Respond().Error(status.ErrInternalServerError).Close()); werr != nil {
			return werr
		}

		return status.NewConnError(status.KindPanic, err)
	}

	if cb, ok := c.request.Continuation(); ok {
		c.continuation = cb
	}

	if c.continuation != nil && !c.request.IsLast {
		return nil
	}

	return c.write(response)
}

// call runs the handler, turning a panic into an error.
func (c *Conn) call(handler http.Handler) (response *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return handler(c.request), nil
}

func (c *Conn) write(response *http.Response) error {
	if response == nil {
		response = c.request.Respond()
	}

	if !c.keepAlive {
		response.Close()
	}

	fields := response.Reveal()
	if c.span != nil {
		c.span.SetAttributes(attribute.Int("http.response.status_code", int(fields.Code)))
	}

	if err := c.serializer.Write(c.conn, c.request, response); err != nil {
		return err
	}

	c.endSpan(nil)
	c.closing = fields.Shutdown

	return nil
}

func (c *Conn) read() (done bool, err error) {
	if err = c.conn.SetReadDeadline(time.Now().Add(c.cfg.NET.ReadTimeout)); err != nil {
		return true, status.NewConnError(status.KindIO, err)
	}

	n, err := c.conn.Read(c.buff.Spare())
	c.buff.Commit(n)

	switch {
	case n > 0:
		return false, nil
	case err == nil, errors.Is(err, io.EOF):
		return true, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.telemetry.IdleTimeout(c.ctx)
		c.logger.Debug("idle timeout", "buffered", c.buff.Len())
		if cw, ok := c.conn.(closeWriter); ok {
			_ = cw.CloseWrite()
		}

		return true, nil
	default:
		return true, status.NewConnError(status.KindIO, err)
	}
}

func (c *Conn) fail(err error) error {
	c.endSpan(err)
	return err
}

func (c *Conn) endSpan(err error) {
	if c.span == nil {
		return
	}

	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}

	c.span.End()
	c.span = nil
}

// classify wraps parsing errors into the connection error of a matching kind.
func classify(err error) error {
	switch {
	case errors.Is(err, status.ErrTooManyHeaders),
		errors.Is(err, status.ErrHeaderFieldsTooLarge),
		errors.Is(err, status.ErrBodyTooLarge):
		return status.NewConnError(status.KindLimit, err)
	case errors.Is(err, status.ErrBadChunk),
		errors.Is(err, status.ErrBadContentLength),
		errors.Is(err, status.ErrURIDecoding):
		return status.NewConnError(status.KindMalformed, err)
	default:
		return status.NewConnError(status.KindSyntax, err)
	}
}

// isChunked reports whether the transfer codings end with chunked.
func isChunked(value string) bool {
	const token = "chunked"
	value = strings.TrimSpace(value)

	return len(value) >= len(token) && strcomp.EqualFold(value[len(value)-len(token):], token)
}
