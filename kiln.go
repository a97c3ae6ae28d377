package kiln

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/status"
	httpserver "github.com/indigo-web/kiln/internal/server/http"
	"github.com/indigo-web/kiln/internal/server/tcp"
	"github.com/indigo-web/kiln/internal/telemetry"
	"github.com/indigo-web/kiln/router"
	"github.com/indigo-web/kiln/router/inbuilt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	errShutdown         = errors.New("shutdown")
	errGracefulShutdown = errors.New("graceful shutdown")
)

// App is an HTTP/1.1 server. It's configured via chained calls and started by Serve.
type App struct {
	addr   string
	cfg    *config.Config
	logger *slog.Logger
	meter  metric.MeterProvider
	tracer trace.TracerProvider
	hooks  hooks
	stopCh chan error

	mu    sync.Mutex
	bound net.Addr
}

// New returns a new App instance listening on addr once served.
func New(addr string) *App {
	return &App{
		addr:   addr,
		cfg:    config.Default(),
		logger: slog.Default(),
		meter:  otel.GetMeterProvider(),
		tracer: otel.GetTracerProvider(),
		stopCh: make(chan error, 1),
	}
}

// Tune replaces default config.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Logger sets the logger. Every connection logs with the conn and remote attributes.
func (a *App) Logger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// Meter sets the meter provider. The global one is used by default.
func (a *App) Meter(provider metric.MeterProvider) *App {
	a.meter = provider
	return a
}

// Tracer sets the tracer provider. The global one is used by default.
func (a *App) Tracer(provider trace.TracerProvider) *App {
	a.tracer = provider
	return a
}

// NotifyOnStart calls the callback at the moment the listener is bound.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback at the moment, when the server is down. It's guaranteed,
// that at the moment as the callback is called, the server isn't able to accept any new connections
// and all the clients are already disconnected
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Addr returns the address the server is bound to, or nil if it isn't running.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.bound
}

// Serve starts the web-application and blocks until it's stopped. If nil is passed instead
// of a router, an inbuilt one responding 404 Not Found to everything is used.
func (a *App) Serve(r router.Router) error {
	if r == nil {
		r = inbuilt.New().Default(func(request *http.Request) *http.Response {
			return request.Respond().Error(status.ErrNotFound)
		})
	}

	if err := r.OnStart(); err != nil {
		return err
	}

	tel, err := telemetry.New(a.meter, a.tracer)
	if err != nil {
		return err
	}

	sock, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}

	a.setBound(sock.Addr())
	defer a.setBound(nil)

	server := tcp.NewServer(sock, a.cfg.NET.MaxConnections, a.newConnCallback(r, tel))
	a.logger.Info("listening", "addr", sock.Addr().String())

	return a.run(server)
}

func (a *App) run(server *tcp.Server) error {
	startCh := make(chan error, 1)
	go func() {
		startCh <- server.Start()
	}()

	callIfNotNil(a.hooks.OnStart)

	var err error
	select {
	case err = <-startCh:
	case sig := <-a.stopCh:
		if sig == errGracefulShutdown {
			// stop listening to new clients and process till the end all the old ones
			err = server.GracefulStop()
		} else {
			err = server.Stop()
		}

		if startErr := <-startCh; startErr != nil {
			err = startErr
		}
	}

	callIfNotNil(a.hooks.OnStop)

	return err
}

// GracefulStop stops accepting new connections, but keeps serving old ones. Serve returns
// once all of them are done.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will be still working
func (a *App) GracefulStop() {
	a.signal(errGracefulShutdown)
}

// Stop stops the whole application immediately, closing all the connections.
//
// NOTE: the call isn't blocking. So by that, after the method returned, the server
// will still be working
func (a *App) Stop() {
	a.signal(errShutdown)
}

func (a *App) signal(sig error) {
	select {
	case a.stopCh <- sig:
	default:
	}
}

func (a *App) setBound(addr net.Addr) {
	a.mu.Lock()
	a.bound = addr
	a.mu.Unlock()
}

func (a *App) newConnCallback(r router.Router, tel *telemetry.Telemetry) tcp.OnConn {
	return func(conn net.Conn) {
		ctx := context.Background()
		logger := a.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
		logger.Debug("connected")
		tel.ConnOpened(ctx)

		err := httpserver.NewConn(a.cfg, conn, r, logger, tel).Serve(ctx)

		var kind string
		switch {
		case err == nil:
			logger.Debug("disconnected")
		case errors.Is(err, net.ErrClosed):
			// the server is being stopped
			logger.Debug("connection closed by server", "err", err)
		default:
			kind = status.KindOf(err).String()
			logger.Warn("connection failed", "kind", kind, "err", err)
		}

		tel.ConnClosed(ctx, kind)
	}
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
