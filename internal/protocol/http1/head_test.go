package http1

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/kiln/http/status"
	"github.com/stretchr/testify/require"
)

type parsedHead struct {
	Method, Path, Proto string
	Headers             []string
}

func parseHead(t *testing.T, data string, maxHeaders int) (parsedHead, Head, error) {
	t.Helper()
	head, err := ParseHead([]byte(data), make([]HeaderSpan, 0, maxHeaders))
	if err != nil || !head.Complete {
		return parsedHead{}, head, err
	}

	result := parsedHead{
		Method: data[head.Method.Start:head.Method.End],
		Path:   data[head.Path.Start:head.Path.End],
		Proto:  data[head.Proto.Start:head.Proto.End],
	}

	for _, header := range head.Headers {
		result.Headers = append(result.Headers,
			data[header.Name.Start:header.Name.End]+"="+data[header.Value.Start:header.Value.End],
		)
	}

	return result, head, nil
}

func TestParseHead(t *testing.T) {
	t.Run("simple GET", func(t *testing.T) {
		const raw = "GET / HTTP/1.1\r\n\r\n"
		result, head, err := parseHead(t, raw, 10)
		require.NoError(t, err)
		require.True(t, head.Complete)
		require.Equal(t, len(raw), head.Consumed)
		require.Equal(t, parsedHead{Method: "GET", Path: "/", Proto: "HTTP/1.1"}, result)
	})

	t.Run("headers", func(t *testing.T) {
		const raw = "POST /echo?x=1 HTTP/1.0\r\nHost: localhost\r\nContent-Length:3 \r\nX-Empty:\r\n\r\nabc"
		result, head, err := parseHead(t, raw, 10)
		require.NoError(t, err)
		require.Equal(t, len(raw)-len("abc"), head.Consumed)
		require.Equal(t, "POST", result.Method)
		require.Equal(t, "/echo?x=1", result.Path)
		require.Equal(t, "HTTP/1.0", result.Proto)
		require.Equal(t, []string{"Host=localhost", "Content-Length=3", "X-Empty="}, result.Headers)
	})

	t.Run("bare LF", func(t *testing.T) {
		result, _, err := parseHead(t, "GET /a HTTP/1.1\nHello: world\n\n", 10)
		require.NoError(t, err)
		require.Equal(t, "/a", result.Path)
		require.Equal(t, []string{"Hello=world"}, result.Headers)
	})

	t.Run("leading empty lines", func(t *testing.T) {
		const raw = "\r\n\r\nGET / HTTP/1.1\r\n\r\n"
		result, head, err := parseHead(t, raw, 10)
		require.NoError(t, err)
		require.Equal(t, len(raw), head.Consumed)
		require.Equal(t, "GET", result.Method)
	})

	t.Run("extension method", func(t *testing.T) {
		result, _, err := parseHead(t, "PURGE /cache HTTP/1.1\r\n\r\n", 10)
		require.NoError(t, err)
		require.Equal(t, "PURGE", result.Method)
	})

	t.Run("partial", func(t *testing.T) {
		const raw = "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"
		for i := range len(raw) - 1 {
			_, head, err := parseHead(t, raw[:i], 10)
			require.NoError(t, err, raw[:i])
			require.False(t, head.Complete, raw[:i])
			require.Zero(t, head.Consumed)
		}
	})

	t.Run("too many headers", func(t *testing.T) {
		headers := make([]string, 11)
		for i := range headers {
			headers[i] = fmt.Sprintf("%[1]s: %[1]s", uniuri.NewLen(16))
		}

		raw := "GET / HTTP/1.1\r\n" + strings.Join(headers, "\r\n") + "\r\n\r\n"
		_, _, err := parseHead(t, raw, 10)
		require.ErrorIs(t, err, status.ErrTooManyHeaders)

		result, _, err := parseHead(t, raw, 11)
		require.NoError(t, err)
		require.Len(t, result.Headers, 11)
	})

	t.Run("syntax errors", func(t *testing.T) {
		for _, raw := range []string{
			"GET\r\n\r\n",
			"GET /\r\n\r\n",
			" / HTTP/1.1\r\n\r\n",
			"GET  HTTP/1.1\r\n\r\n",
			"G(T / HTTP/1.1\r\n\r\n",
			"GET / HTTQ/1.1\r\n\r\n",
			"GET / HTTP/1.1\r\nno colon\r\n\r\n",
			"GET / HTTP/1.1\r\n: no name\r\n\r\n",
			"GET / HTTP/1.1\r\nHost: a\r\n folded\r\n\r\n",
			"\rGET / HTTP/1.1\r\n\r\n",
		} {
			_, _, err := parseHead(t, raw, 10)
			require.ErrorIs(t, err, status.ErrBadRequest, raw)
		}
	})

	t.Run("unsupported protocol", func(t *testing.T) {
		for _, raw := range []string{
			"GET / HTTP/2.0\r\n\r\n",
			"GET / HTTP/1.2\r\n\r\n",
		} {
			_, _, err := parseHead(t, raw, 10)
			require.ErrorIs(t, err, status.ErrUnsupportedProtocol, raw)
		}
	})
}
