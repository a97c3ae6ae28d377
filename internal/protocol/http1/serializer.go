package http1

import (
	"errors"
	"io"
	"strconv"

	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/method"
	"github.com/indigo-web/kiln/http/proto"
	"github.com/indigo-web/kiln/http/status"
)

// ErrZeroWrite is returned when the socket accepts zero bytes while data is still pending.
var ErrZeroWrite = errors.New("zero-length write")

const crlf = "\r\n"

// Serializer renders responses into their wire form and writes them out.
type Serializer struct {
	buff []byte
	// inlineBody is the largest body still copied into the buffer, bigger ones are
	// written separately.
	inlineBody int
}

func NewSerializer(cfg *config.Config) *Serializer {
	return &Serializer{
		buff:       make([]byte, 0, cfg.NET.WriteBufferSize),
		inlineBody: cfg.NET.WriteBufferSize,
	}
}

// Write serializes the response and writes it entirely. The body is omitted for HEAD
// requests, whilst Content-Length still reflects its size.
func (s *Serializer) Write(w io.Writer, request *http.Request, response *http.Response) error {
	fields := response.Reveal()

	protocol := request.Proto
	if protocol == proto.Unknown {
		protocol = proto.HTTP11
	}

	buff := append(s.buff[:0], protocol.String()...)
	buff = append(buff, ' ')
	buff = append(buff, status.Line(fields.Code, fields.Status)...)
	buff = append(buff, crlf...)
	buff = appendHeader(buff, "Content-Length", strconv.Itoa(len(fields.Body)))

	if len(fields.ContentType) > 0 {
		buff = appendHeader(buff, "Content-Type", fields.ContentType)
	}

	for _, header := range fields.Headers {
		buff = appendHeader(buff, header.Key, header.Value)
	}

	switch {
	case fields.Shutdown:
		buff = appendHeader(buff, "Connection", "close")
	case protocol == proto.HTTP10:
		buff = appendHeader(buff, "Connection", "keep-alive")
	}

	buff = append(buff, crlf...)

	body := fields.Body
	if request.Method == method.HEAD {
		body = nil
	}

	if len(body) <= s.inlineBody {
		buff = append(buff, body...)
		body = nil
	}

	s.buff = buff

	if err := writeAll(w, buff); err != nil {
		return err
	}

	return writeAll(w, body)
}

func appendHeader(buff []byte, key, value string) []byte {
	buff = append(buff, key...)
	buff = append(buff, ": "...)
	buff = append(buff, value...)
	return append(buff, crlf...)
}

func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return status.NewConnError(status.KindIO, err)
		}

		if n == 0 {
			return status.NewConnError(status.KindZeroWrite, ErrZeroWrite)
		}

		data = data[n:]
	}

	return nil
}
