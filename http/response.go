package http

import (
	"errors"

	"github.com/indigo-web/kiln/http/mime"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/internal/response"
	"github.com/indigo-web/kiln/kv"
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
)

// why 7? Fits the usual server/date/cache trio with a good margin.
const preallocRespHeaders = 7

type Response struct {
	fields *response.Fields
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK
// and text/plain content type.
// NOTE: it's recommended to use Request.Respond() method inside of handlers, if there's no
// clear reason otherwise
func NewResponse() *Response {
	return &Response{
		&response.Fields{
			Code:        status.OK,
			Headers:     make([]kv.Pair, 0, preallocRespHeaders),
			ContentType: response.DefaultContentType,
		},
	}
}

// Code sets the response code. The reason phrase is picked automatically unless Status
// is called.
func (r *Response) Code(code status.Code) *Response {
	r.fields.Code = code
	return r
}

// Status sets a custom reason phrase.
func (r *Response) Status(status status.Status) *Response {
	r.fields.Status = status
	return r
}

func (r *Response) ContentType(value mime.MIME) *Response {
	r.fields.ContentType = value
	return r
}

// Header adds header values to a key. Content-Length is always computed by the serializer,
// so it is silently ignored here.
func (r *Response) Header(key string, values ...string) *Response {
	switch {
	case strcomp.EqualFold(key, "content-type"):
		if len(values) > 0 {
			return r.ContentType(values[0])
		}

		return r
	case strcomp.EqualFold(key, "content-length"):
		return r
	}

	for _, value := range values {
		r.fields.Headers = append(r.fields.Headers, kv.Pair{
			Key:   key,
			Value: value,
		})
	}

	return r
}

// String sets the response body.
func (r *Response) String(body string) *Response {
	return r.Bytes(uf.S2B(body))
}

// Bytes sets the response body to the passed slice WITHOUT COPYING. Changing the slice
// later affects the response.
func (r *Response) Bytes(body []byte) *Response {
	r.fields.Body = body
	return r
}

// Write implements io.Writer by appending to the body. It always succeeds.
func (r *Response) Write(b []byte) (n int, err error) {
	r.fields.Body = append(r.fields.Body, b...)
	return len(b), nil
}

// TryJSON serializes the model into the body.
func (r *Response) TryJSON(model any) (*Response, error) {
	r.fields.Body = nil
	stream := json.ConfigDefault.BorrowStream(r)
	stream.WriteVal(model)
	err := stream.Flush()
	json.ConfigDefault.ReturnStream(stream)

	return r.ContentType(mime.JSON), err
}

// JSON does the same as TryJSON does, except the error is wrapped by Error.
func (r *Response) JSON(model any) *Response {
	resp, err := r.TryJSON(model)
	if err != nil {
		return r.Error(err)
	}

	return resp
}

// Error turns the response into an error response. status.HTTPError values carry their own
// code, anything else results in 500 Internal Server Error. A nil error changes nothing.
func (r *Response) Error(err error) *Response {
	if err == nil {
		return r
	}

	var httpErr status.HTTPError
	if errors.As(err, &httpErr) {
		return r.Code(httpErr.Code).String(httpErr.Message)
	}

	return r.
		Code(status.InternalServerError).
		String(status.ErrInternalServerError.Error())
}

// Close marks the connection to be closed once this response is written.
func (r *Response) Close() *Response {
	r.fields.Shutdown = true
	return r
}

// Reveal returns the fields set by the builder. Used by the serializer.
func (r *Response) Reveal() *response.Fields {
	return r.fields
}

// Clear discards everything was done with the response before.
func (r *Response) Clear() *Response {
	r.fields.Clear()
	return r
}

// Respond is a predicate to request.Respond(). May be used as a dummy handler.
func Respond(request *Request) *Response {
	return request.Respond()
}

// Code is a predicate to request.Respond().Code(...)
func Code(request *Request, code status.Code) *Response {
	return request.Respond().Code(code)
}

// String is a predicate to request.Respond().String(...)
func String(request *Request, str string) *Response {
	return request.Respond().String(str)
}
