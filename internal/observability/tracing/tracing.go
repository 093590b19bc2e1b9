// Package tracing installs an OpenTelemetry tracer provider that prints
// finished spans to a writer. Disabled tracing hands out a no-op tracer.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "pawpal"

type Config struct {
	Enabled bool
	Out     io.Writer
}

func Setup(cfg Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(instrumentationName), func(context.Context) error { return nil }, nil
	}
	opts := []stdouttrace.Option{}
	if cfg.Out != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Out))
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Tracer(instrumentationName), tp.Shutdown, nil
}
