package kiln

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/router/inbuilt"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func getRouter() *inbuilt.Router {
	return inbuilt.New().
		Get("/", func(request *http.Request) *http.Response {
			return request.Respond().String("index")
		}).
		Post("/echo", func(request *http.Request) *http.Response {
			var body []byte
			request.OnBody(func(request *http.Request) *http.Response {
				body = append(body, request.Body...)
				if !request.IsLast {
					return nil
				}

				return request.Respond().Bytes(body)
			})

			return nil
		}).
		Get("/users/:id", func(request *http.Request) *http.Response {
			return request.Respond().JSON(map[string]string{"id": request.Params.Value("id")})
		}).
		Default(func(request *http.Request) *http.Response {
			return request.Respond().Error(status.ErrNotFound)
		})
}

type testServer struct {
	app    *App
	addr   string
	reader *sdkmetric.ManualReader
	done   chan error
}

func startServer(t *testing.T, cfg *config.Config) *testServer {
	reader := sdkmetric.NewManualReader()
	started := make(chan struct{})
	app := New("127.0.0.1:0").
		Tune(cfg).
		Logger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Meter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))).
		NotifyOnStart(func() {
			close(started)
		})

	done := make(chan error, 1)
	go func() {
		done <- app.Serve(getRouter())
	}()

	select {
	case <-started:
	case err := <-done:
		require.FailNow(t, "server failed to start", err)
	}

	server := &testServer{app: app, addr: app.Addr().String(), reader: reader, done: done}
	t.Cleanup(func() {
		app.Stop()
		require.NoError(t, <-done)
	})

	return server
}

func (s *testServer) url(path string) string {
	return "http://" + s.addr + path
}

func (s *testServer) counter(t *testing.T, name string) (total int64) {
	var rm metricdata.ResourceMetrics
	require.NoError(t, s.reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			for _, point := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += point.Value
			}
		}
	}

	return total
}

func readAll(t *testing.T, resp *stdhttp.Response) string {
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(body)
}

func TestServer(t *testing.T) {
	cfg := config.Default()
	cfg.NET.ReadTimeout = 200 * time.Millisecond
	server := startServer(t, cfg)

	t.Run("simple get", func(t *testing.T) {
		resp, err := stdhttp.Get(server.url("/"))
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, "index", readAll(t, resp))
	})

	t.Run("params and json", func(t *testing.T) {
		resp, err := stdhttp.Get(server.url("/users/42"))
		require.NoError(t, err)
		require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		require.JSONEq(t, `{"id":"42"}`, readAll(t, resp))
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := stdhttp.Get(server.url("/nothing/here"))
		require.NoError(t, err)
		require.Equal(t, 404, resp.StatusCode)
		require.Equal(t, "not found", readAll(t, resp))
	})

	t.Run("echo sized", func(t *testing.T) {
		payload := uniuri.NewLen(64 * 1024)
		resp, err := stdhttp.Post(server.url("/echo"), "text/plain", strings.NewReader(payload))
		require.NoError(t, err)
		require.Equal(t, payload, readAll(t, resp))
	})

	t.Run("echo chunked", func(t *testing.T) {
		payload := uniuri.NewLen(64 * 1024)
		// hiding the length makes the client fall back to chunked encoding
		body := io.MultiReader(strings.NewReader(payload))
		req, err := stdhttp.NewRequest(stdhttp.MethodPost, server.url("/echo"), body)
		require.NoError(t, err)
		resp, err := stdhttp.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, payload, readAll(t, resp))
	})

	t.Run("keep-alive", func(t *testing.T) {
		conn, err := net.Dial("tcp", server.addr)
		require.NoError(t, err)
		defer conn.Close()

		const request = "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"
		_, err = conn.Write([]byte(request + request))
		require.NoError(t, err)

		reader := bufio.NewReader(conn)
		for range 2 {
			resp, err := stdhttp.ReadResponse(reader, nil)
			require.NoError(t, err)
			require.Equal(t, "index", readAll(t, resp))
		}
	})

	t.Run("idle timeout", func(t *testing.T) {
		conn, err := net.Dial("tcp", server.addr)
		require.NoError(t, err)
		defer conn.Close()

		// the request is never finished
		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: local"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		start := time.Now()
		data, err := io.ReadAll(conn)
		require.NoError(t, err)
		require.Empty(t, data)
		require.Less(t, time.Since(start), 5*time.Second)
		require.Positive(t, server.counter(t, "kiln.connections.idle_timeouts"))
	})

	t.Run("failures are isolated", func(t *testing.T) {
		healthy, err := net.Dial("tcp", server.addr)
		require.NoError(t, err)
		defer healthy.Close()

		broken, err := net.Dial("tcp", server.addr)
		require.NoError(t, err)
		defer broken.Close()

		_, err = broken.Write([]byte("POST / HTTP/1.1\r\nContent-Length: nope\r\n\r\n"))
		require.NoError(t, err)
		require.NoError(t, broken.SetReadDeadline(time.Now().Add(5*time.Second)))
		data, err := io.ReadAll(broken)
		require.NoError(t, err)
		require.Empty(t, data, "no response is written for a malformed request")

		_, err = healthy.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		resp, err := stdhttp.ReadResponse(bufio.NewReader(healthy), nil)
		require.NoError(t, err)
		require.Equal(t, "index", readAll(t, resp))
		require.Positive(t, server.counter(t, "kiln.connections.failed"))
	})

	t.Run("telemetry", func(t *testing.T) {
		require.Positive(t, server.counter(t, "kiln.connections"))
		require.Positive(t, server.counter(t, "kiln.requests"))
	})
}

func TestApp(t *testing.T) {
	t.Run("graceful stop", func(t *testing.T) {
		stopped := make(chan struct{})
		app := New("127.0.0.1:0").
			Logger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			NotifyOnStop(func() {
				close(stopped)
			})

		done := make(chan error, 1)
		go func() {
			done <- app.Serve(nil)
		}()

		require.Eventually(t, func() bool {
			return app.Addr() != nil
		}, 5*time.Second, 10*time.Millisecond)

		resp, err := stdhttp.Get("http://" + app.Addr().String() + "/")
		require.NoError(t, err)
		require.Equal(t, 404, resp.StatusCode)
		_ = readAll(t, resp)
		stdhttp.DefaultClient.CloseIdleConnections()

		app.GracefulStop()
		require.NoError(t, <-done)
		<-stopped
		require.Nil(t, app.Addr())
	})

	t.Run("refuses to start without default handler", func(t *testing.T) {
		err := New("127.0.0.1:0").Serve(inbuilt.New().Get("/", http.Respond))
		require.ErrorIs(t, err, inbuilt.ErrNoDefaultHandler)
	})

	t.Run("bad address", func(t *testing.T) {
		err := New("127.0.0.1:-1").Serve(nil)
		require.Error(t, err)
	})
}
