// kiln-echo is a small demo server showing off routing, path params and streamed request bodies.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigo-web/kiln"
	"github.com/indigo-web/kiln/config"
	"github.com/indigo-web/kiln/http"
	"github.com/indigo-web/kiln/http/status"
	"github.com/indigo-web/kiln/router/inbuilt"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "address to listen on")
	cfgPath := flag.String("config", "", "path to a YAML config, defaults are used if empty")
	withOTel := flag.Bool("otel", false, "export traces, metrics and logs over OTLP/gRPC")
	flag.Parse()

	if err := run(*addr, *cfgPath, *withOTel); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(addr, cfgPath string, withOTel bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if withOTel {
		otelLogger, shutdown, err := setupOTel(ctx)
		if err != nil {
			return err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := shutdown(shutdownCtx); err != nil {
				logger.Error("flushing telemetry", "err", err)
			}
		}()

		logger = otelLogger
	}

	app := kiln.New(addr).
		Tune(cfg).
		Logger(logger).
		NotifyOnStart(func() {
			logger.Info("started", "addr", addr)
		}).
		NotifyOnStop(func() {
			logger.Info("stopped")
		})

	go func() {
		<-ctx.Done()
		app.GracefulStop()
	}()

	return app.Serve(routes())
}

func routes() *inbuilt.Router {
	return inbuilt.New().
		Get("/", func(request *http.Request) *http.Response {
			return request.Respond().String("Hello, world!")
		}).
		Post("/echo", echo).
		Get("/users/:id", func(request *http.Request) *http.Response {
			return request.Respond().JSON(user{
				ID:    request.Params.Value("id"),
				Query: request.Query,
			})
		}).
		Get("/static/*", func(request *http.Request) *http.Response {
			return request.Respond().String(request.Params.Value("*"))
		}).
		Default(func(request *http.Request) *http.Response {
			return request.Respond().Error(status.ErrNotFound)
		})
}

type user struct {
	ID    string `json:"id"`
	Query string `json:"query,omitempty"`
}

// echo streams the request body back. Every payload is copied, as the request body
// is overwritten by the next one.
func echo(request *http.Request) *http.Response {
	var body []byte

	request.OnBody(func(request *http.Request) *http.Response {
		body = append(body, request.Body...)
		if !request.IsLast {
			return nil
		}

		return request.Respond().
			ContentType(request.Headers.ValueOr("content-type", "application/octet-stream")).
			Bytes(body)
	})

	return nil
}
