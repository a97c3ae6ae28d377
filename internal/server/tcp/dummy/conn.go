package dummy

import (
	"io"
	"net"
	"os"
	"time"
)

// Conn is a scripted net.Conn. Every Read returns the next fragment (or as much of it as
// fits). Once the fragments are exhausted, reads return io.EOF, or os.ErrDeadlineExceeded
// if the conn is in the idle mode.
type Conn struct {
	// Data accumulates everything written into the conn.
	Data        []byte
	Reads       int
	WriteClosed bool
	Closed      bool
	Deadline    time.Time

	fragments [][]byte
	idle      bool
}

func NewConn(fragments ...[]byte) *Conn {
	return &Conn{fragments: fragments}
}

// Idle makes the conn time out instead of reporting EOF when the script is over.
func (c *Conn) Idle() *Conn {
	c.idle = true
	return c
}

func (c *Conn) Read(b []byte) (n int, err error) {
	c.Reads++

	if len(c.fragments) == 0 {
		if c.idle {
			return 0, os.ErrDeadlineExceeded
		}

		return 0, io.EOF
	}

	n = copy(b, c.fragments[0])
	if n == len(c.fragments[0]) {
		c.fragments = c.fragments[1:]
	} else {
		c.fragments[0] = c.fragments[0][n:]
	}

	return n, nil
}

func (c *Conn) Write(b []byte) (n int, err error) {
	if c.WriteClosed {
		return 0, net.ErrClosed
	}

	c.Data = append(c.Data, b...)

	return len(b), nil
}

func (c *Conn) CloseWrite() error {
	c.WriteClosed = true
	return nil
}

func (c *Conn) Close() error {
	c.Closed = true
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80}
}

func (c *Conn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 49152}
}

func (c *Conn) SetDeadline(t time.Time) error {
	c.Deadline = t
	return nil
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.Deadline = t
	return nil
}

func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}
