package event

import (
	"context"

	"go.opentelemetry.io/otel/propagation"

	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

var (
	_ otelx.TracePropagator = (*Otel)(nil)
	_ otelx.TraceExtractor  = (*Otel)(nil)
)

// Otel is embedded into events so a consumer can continue the producer's trace.
type Otel struct {
	Carrier map[string]string `json:"otel_carrier,omitempty"`
}

func (o *Otel) Propagate(ctx context.Context) {
	if o.Carrier == nil {
		o.Carrier = make(map[string]string)
	}
	otelx.Propagator.Inject(ctx, propagation.MapCarrier(o.Carrier))
}

func (o *Otel) Extract() context.Context {
	return otelx.Propagator.Extract(context.Background(), propagation.MapCarrier(o.Carrier))
}
