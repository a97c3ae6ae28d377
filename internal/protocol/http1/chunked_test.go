package http1

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http/status"
	"github.com/stretchr/testify/require"
)

func newDecoder() ChunkDecoder {
	return NewChunkDecoder(config.Default())
}

// feed decodes every complete frame of the input. The returned extra is the data that's
// left after the terminating chunk, or the unconsumed tail if none was met.
func feed(d ChunkDecoder, input []byte) (output, extra []byte, chunks int, err error) {
	for {
		chunk, consumed, err := d.Decode(input)
		if err != nil {
			return output, input, chunks, err
		}

		if !chunk.Complete {
			return output, input, chunks, nil
		}

		output = append(output, input[chunk.Payload.Start:chunk.Payload.End]...)
		input = input[consumed:]
		chunks++

		if chunk.IsLast {
			return output, input, chunks, nil
		}
	}
}

// scatter splits data into fragments of at most n bytes.
func scatter(data []byte, n int) (fragments [][]byte) {
	for len(data) > n {
		fragments = append(fragments, data[:n])
		data = data[n:]
	}

	return append(fragments, data)
}

func encodeChunked(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		fmt.Fprintf(&b, "%x\r\n%s\r\n", len(part), part)
	}

	b.WriteString("0\r\n\r\n")

	return b.String()
}

func TestChunkDecoder(t *testing.T) {
	t.Run("just trailer", func(t *testing.T) {
		output, extra, chunks, err := feed(newDecoder(), []byte("0\r\n\r\n"))
		require.NoError(t, err)
		require.Empty(t, extra)
		require.Empty(t, output)
		require.Equal(t, 1, chunks)
	})

	t.Run("trailer with field lines", func(t *testing.T) {
		output, extra, _, err := feed(newDecoder(), []byte("0\r\nHello: world\r\nworld: Hello\r\n\r\nGET"))
		require.NoError(t, err)
		require.Equal(t, "GET", string(extra))
		require.Empty(t, output)
	})

	t.Run("single chunk", func(t *testing.T) {
		chunk, consumed, err := newDecoder().Decode([]byte("d\r\nHello, world!\r\n0\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, chunk.Complete)
		require.False(t, chunk.IsLast)
		require.Equal(t, 13, chunk.Payload.Len())
		require.Equal(t, len("d\r\nHello, world!\r\n"), consumed)
	})

	t.Run("extension", func(t *testing.T) {
		output, extra, _, err := feed(newDecoder(), []byte("d;hello=world\r\nHello, world!\r\n0; checksum=no one cares\r\n\r\n"))
		require.NoError(t, err)
		require.Empty(t, extra)
		require.Equal(t, "Hello, world!", string(output))
	})

	t.Run("LF use", func(t *testing.T) {
		output, extra, _, err := feed(newDecoder(), []byte("d;hello=world\nHello, world!\n0; checksum=no one cares\n\n"))
		require.NoError(t, err)
		require.Empty(t, extra)
		require.Equal(t, "Hello, world!", string(output))
	})

	t.Run("multiple hex characters", func(t *testing.T) {
		output, _, chunks, err := feed(newDecoder(), []byte(
			"0000d\r\nHello, world!\r\n0000D\r\nHello, Pavlo!\r\n0\r\n\r\n",
		))
		require.NoError(t, err)
		require.Equal(t, 3, chunks)
		require.Equal(t, "Hello, world!Hello, Pavlo!", string(output))
	})

	t.Run("incomplete frames consume nothing", func(t *testing.T) {
		sample := "d;hello=world\r\nHello, world!\r\n"
		for i := range len(sample) {
			chunk, consumed, err := newDecoder().Decode([]byte(sample[:i]))
			require.NoError(t, err, sample[:i])
			require.False(t, chunk.Complete, sample[:i])
			require.Zero(t, consumed)
		}
	})

	t.Run("fragmented input", func(t *testing.T) {
		sample := []byte("d;hello=world\r\nHello, world!\r\nd\r\nHello, Pavlo!\r\n0; checksum=no one cares\r\n\r\n")
		for i := range len(sample) - 1 {
			var pending, output []byte
			var chunks int

			for _, fragment := range scatter(sample, i+1) {
				pending = append(pending, fragment...)
				out, extra, n, err := feed(newDecoder(), pending)
				require.NoError(t, err)
				output = append(output, out...)
				chunks += n
				pending = append(pending[:0], extra...)
			}

			require.Empty(t, pending)
			require.Equal(t, 3, chunks)
			require.Equal(t, "Hello, world!Hello, Pavlo!", string(output))
		}
	})

	t.Run("bad hex character", func(t *testing.T) {
		_, _, _, err := feed(newDecoder(), []byte("dg\r\nHello, world!\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("empty length", func(t *testing.T) {
		_, _, _, err := feed(newDecoder(), []byte("\r\nHello\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("too many length characters", func(t *testing.T) {
		_, _, _, err := feed(newDecoder(), []byte("0000000000000000d\r\nHello, world!\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("missing payload terminator", func(t *testing.T) {
		_, _, _, err := feed(newDecoder(), []byte("5\r\nHelloX\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBadChunk)
	})

	t.Run("chunk over body limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.MaxSize = 10
		_, _, _, err := feed(NewChunkDecoder(cfg), []byte("b\r\nHello world\r\n0\r\n\r\n"))
		require.ErrorIs(t, err, status.ErrBodyTooLarge)
	})

	t.Run("trailer over limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.Headers.MaxTrailerSize = 16
		_, _, _, err := feed(NewChunkDecoder(cfg), []byte("0\r\nX-Checksum: "+strings.Repeat("a", 32)))
		require.ErrorIs(t, err, status.ErrHeaderFieldsTooLarge)
	})

	t.Run("agrees with reference parser", func(t *testing.T) {
		for n := range 20 {
			parts := make([]string, 1+n%7)
			for i := range parts {
				parts[i] = uniuri.NewLen(1 + i*37)
			}

			encoded := []byte(encodeChunked(parts...))

			want := referenceDecode(t, encoded)
			got, extra, _, err := feed(newDecoder(), encoded)
			require.NoError(t, err)
			require.Empty(t, extra)
			require.Equal(t, want, string(got))
			require.Equal(t, strings.Join(parts, ""), string(got))
		}
	})
}

func referenceDecode(t *testing.T, data []byte) string {
	parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())
	var body []byte

	for len(data) > 0 {
		chunk, extra, err := parser.Parse(data, false)
		body = append(body, chunk...)
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}

		data = extra
	}

	return string(body)
}
