package tcp

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/net/netutil"
)

type OnConn func(net.Conn)

// Server accepts connections and serves each one in its own goroutine. Connections are
// closed once onConn returns.
type Server struct {
	sock     net.Listener
	onConn   OnConn
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	// killed is set by Stop. Connections accepted after it are closed right away.
	killed   bool
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewServer wraps the listener. A positive maxConns bounds the number of simultaneously
// served connections, the rest are waiting in the backlog.
func NewServer(sock net.Listener, maxConns int, onConn OnConn) *Server {
	if maxConns > 0 {
		sock = netutil.LimitListener(sock, maxConns)
	}

	return &Server{
		sock:   sock,
		onConn: onConn,
		conns:  make(map[net.Conn]struct{}),
	}
}

func (s *Server) Addr() net.Addr {
	return s.sock.Addr()
}

// Start runs the accept loop. It returns nil after Stop or GracefulStop, once every
// connection is done.
func (s *Server) Start() error {
	for {
		conn, err := s.sock.Accept()
		if err != nil {
			s.wg.Wait()

			if s.shutdown.Load() && errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err
		}

		s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	if !s.track(conn) {
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	go s.handle(conn)
}

// track registers the connection, unless Stop was already called.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.killed {
		return false
	}

	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()

	s.onConn(conn)
	_ = conn.Close()

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) stopListener() error {
	s.shutdown.Store(true)
	return s.sock.Close()
}

// Stop shuts the listener and ALL the connections down.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.killed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return s.stopListener()
}

// GracefulStop stops the listener, leaving all the connections free to end their
// lives peacefully.
func (s *Server) GracefulStop() error {
	return s.stopListener()
}
