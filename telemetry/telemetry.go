// Package telemetry wraps the aeonis tracer behind a small interface so the
// dashboard can run with tracing disabled.
package telemetry

import (
	"context"

	tracer "github.com/dhawal-pandya/aeonis/packages/tracer-sdk/go"
)

// Span is the subset of span behavior handlers rely on.
type Span interface {
	End()
	SetAttributes(attrs map[string]interface{})
	SetError(message, stack string)
}

type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	Shutdown()
}

type aeonis struct {
	start    func(ctx context.Context, name string) (context.Context, Span)
	shutdown func()
}

// NewAeonis exports spans for serviceName to endpoint with PII scrubbing on.
func NewAeonis(serviceName, endpoint, apiKey string) Tracer {
	t := tracer.NewTracer(serviceName, endpoint, apiKey, tracer.NewPIISanitizer())
	return &aeonis{
		start: func(ctx context.Context, name string) (context.Context, Span) {
			ctx, span := t.StartSpan(ctx, name)
			return ctx, span
		},
		shutdown: func() { t.Shutdown() },
	}
}

func (a *aeonis) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return a.start(ctx, name)
}

func (a *aeonis) Shutdown() {
	a.shutdown()
}

type noopTracer struct{}

type noopSpan struct{}

// Noop returns a tracer that records nothing.
func Noop() Tracer { return noopTracer{} }

func (noopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopTracer) Shutdown() {}

func (noopSpan) End()                                  {}
func (noopSpan) SetAttributes(map[string]interface{}) {}
func (noopSpan) SetError(string, string)               {}
