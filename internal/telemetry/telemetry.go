package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/indigo-web/kiln"

// Telemetry holds instruments shared by all the connections of a server.
type Telemetry struct {
	tracer       trace.Tracer
	connections  metric.Int64Counter
	active       metric.Int64UpDownCounter
	requests     metric.Int64Counter
	failed       metric.Int64Counter
	idleTimeouts metric.Int64Counter
}

func New(mp metric.MeterProvider, tp trace.TracerProvider) (*Telemetry, error) {
	meter := mp.Meter(scope)
	t := &Telemetry{
		tracer: tp.Tracer(scope),
	}

	var err error
	if t.connections, err = meter.Int64Counter("kiln.connections",
		metric.WithDescription("The number of accepted connections"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	if t.active, err = meter.Int64UpDownCounter("kiln.connections.active",
		metric.WithDescription("The number of connections being served"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	if t.requests, err = meter.Int64Counter("kiln.requests",
		metric.WithDescription("The number of dispatched requests by method"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if t.failed, err = meter.Int64Counter("kiln.connections.failed",
		metric.WithDescription("The number of connections torn down by an error, by error kind"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	if t.idleTimeouts, err = meter.Int64Counter("kiln.connections.idle_timeouts",
		metric.WithDescription("The number of connections closed for being idle"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Telemetry) ConnOpened(ctx context.Context) {
	t.connections.Add(ctx, 1)
	t.active.Add(ctx, 1)
}

// ConnClosed accounts the end of a connection. Kind is empty for connections closed
// without an error.
func (t *Telemetry) ConnClosed(ctx context.Context, kind string) {
	t.active.Add(ctx, -1)
	if len(kind) > 0 {
		t.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", kind)))
	}
}

func (t *Telemetry) IdleTimeout(ctx context.Context) {
	t.idleTimeouts.Add(ctx, 1)
}

// StartRequest counts the request and starts its server span. The span must be ended once
// the response is written or the connection fails.
func (t *Telemetry) StartRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	methodAttr := attribute.String("http.request.method", method)
	t.requests.Add(ctx, 1, metric.WithAttributes(methodAttr))

	return t.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(methodAttr, attribute.String("url.path", path)),
	)
}
