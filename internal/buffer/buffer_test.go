package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fill(b *Buffer, data string) int {
	n := copy(b.Spare(), data)
	b.Commit(n)
	return n
}

func TestBuffer(t *testing.T) {
	t.Run("fill and consume", func(t *testing.T) {
		buff := New(16)
		require.Equal(t, 16, len(buff.Spare()))
		require.Equal(t, 11, fill(buff, "hello world"))
		require.Equal(t, "hello world", string(buff.Bytes()))

		buff.Consume(6)
		require.Equal(t, "world", string(buff.Bytes()))
		require.Equal(t, 11, len(buff.Spare()))

		buff.Consume(100)
		require.Zero(t, buff.Len())
	})

	t.Run("spans", func(t *testing.T) {
		buff := New(16)
		fill(buff, "GET / HTTP/1.1")
		method := Span{0, 3}
		require.Equal(t, 3, method.Len())
		require.Equal(t, "GET", string(buff.Slice(method)))

		value := buff.String(Span{4, 5})
		buff.Consume(buff.Len())
		fill(buff, "xxxxxxxxxxxxxxxx")
		require.Equal(t, "/", value)
	})

	t.Run("grow keeps data", func(t *testing.T) {
		buff := New(4)
		fill(buff, "abcd")
		require.True(t, buff.Full())

		buff.Grow(4)
		require.False(t, buff.Full())
		require.Equal(t, 8, cap(buff.Bytes()))
		require.Equal(t, "abcd", string(buff.Bytes()))
		fill(buff, "efgh")
		require.Equal(t, "abcdefgh", string(buff.Bytes()))
	})

	t.Run("never shrinks", func(t *testing.T) {
		buff := New(4)
		buff.Grow(60)
		fill(buff, "data")
		buff.Consume(buff.Len())
		require.Equal(t, 64, len(buff.Spare()))
	})

	t.Run("split", func(t *testing.T) {
		buff := New(16)
		fill(buff, "payloadrest")
		detached := buff.Split(7)
		require.Equal(t, "rest", string(buff.Bytes()))

		fill(buff, "overwrite")
		require.Equal(t, "payload", string(detached))
	})
}
