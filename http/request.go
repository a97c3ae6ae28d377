package http

import (
	"context"
	"net"

	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http/method"
	"github.com/indigo-web/kiln/http/proto"
	"github.com/indigo-web/kiln/kv"
)

var zeroContext = context.Background()

type (
	Headers = *kv.Storage
	Params  = *kv.Storage
)

// Handler processes a request and returns the response to be written. Returning nil is
// the same as returning an untouched request.Respond().
type Handler func(request *Request) *Response

// Request represents an HTTP request. A single instance lives as long as the connection
// does and is reset in place for every new request, so neither the request nor anything
// it holds may be retained after the handler returns. Use kv.Storage.Clone and copy
// the body if needed.
type Request struct {
	// Method is the parsed method. Extension methods are method.Unknown.
	Method method.Method
	// RawMethod is the method token exactly as it was received.
	RawMethod string
	// Path is the percent-decoded request path, without the query.
	Path string
	// RawPath is the path exactly as it was received, still percent-encoded. Routers walk it
	// instead of Path, so an encoded slash never splits a segment.
	RawPath string
	// Query is the raw query string, without the leading question mark.
	Query string
	// Proto is the protocol version the request was made with.
	Proto proto.Proto
	// Headers hold the request headers in their original order. Names are lower-cased.
	Headers Headers
	// Params are path parameters in the order they appeared in the path.
	Params Params
	// Body holds the payload delivered into the current body callback. It's empty in the
	// initial handler call.
	Body []byte
	// IsLast marks the final body payload of the request.
	IsLast bool
	// Remote is the peer address.
	Remote net.Addr
	// Ctx lives as long as a single request does.
	Ctx context.Context

	hasFunction  bool
	continuation Handler
	response     *Response
}

func NewRequest(cfg *config.Config, response *Response, remote net.Addr) *Request {
	return &Request{
		Proto:    proto.HTTP11,
		Headers:  kv.NewPrealloc(cfg.Headers.Prealloc),
		Params:   kv.NewPrealloc(cfg.URI.ParamsPrealloc),
		Remote:   remote,
		Ctx:      zeroContext,
		response: response,
	}
}

// Respond returns the response object of the connection.
//
// WARNING: this method clears the response under the hood. As it is shared by pointer,
// it'll be cleared everywhere along the handler.
func (r *Request) Respond() *Response {
	return r.response.Clear()
}

// OnBody asks for the request body to be streamed into the callback. The callback is
// invoked once per chunk of a chunked body, or once with the whole body otherwise. Every
// invocation sees the payload in Body; the final one additionally has IsLast set. The
// response returned by the last invocation is the one written back. The callback may
// install another callback for the remaining payloads.
func (r *Request) OnBody(cb Handler) {
	r.continuation = cb
	r.hasFunction = true
}

// Continuation hands over the body callback installed by the last handler call, if any,
// and resets the flag, so the same callback is never handed over twice.
func (r *Request) Continuation() (cb Handler, ok bool) {
	if !r.hasFunction {
		return nil, false
	}

	r.hasFunction = false
	cb, r.continuation = r.continuation, nil

	return cb, true
}

// KeepAlive reports whether the client expects the connection to stay open after the
// response. HTTP/1.1 defaults to persistent connections, HTTP/1.0 doesn't.
func (r *Request) KeepAlive() bool {
	for _, value := range r.Headers.Values("connection") {
		switch {
		case tokenEqual(value, "close"):
			return false
		case tokenEqual(value, "keep-alive"):
			return true
		}
	}

	return r.Proto == proto.HTTP11
}

// Reset prepares the request to be filled by the next parsed head.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.RawMethod = ""
	r.Path = ""
	r.RawPath = ""
	r.Query = ""
	r.Headers.Clear()
	r.Params.Clear()
	r.Body = nil
	r.IsLast = false
	r.Ctx = zeroContext
	r.hasFunction = false
	r.continuation = nil
}
