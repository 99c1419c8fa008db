package otelx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Propagator carries W3C trace context and baggage between processes, e.g. inside an event payload.
var Propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

type TracePropagator interface {
	Propagate(ctx context.Context)
}

type TraceExtractor interface {
	Extract() context.Context
}
