package logging

import (
	"context"
	"errors"
	"log/slog"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var _ sdklog.Exporter = (*SlogExporter)(nil)

// SlogExporter is an OpenTelemetry log exporter that writes records to a slog.Handler.
// Together with the otelslog bridge it lets package loggers feed both the local
// output and any OTLP exporter registered on the same provider.
type SlogExporter struct {
	handler slog.Handler
}

func NewSlogExporter(handler slog.Handler) *SlogExporter {
	return &SlogExporter{handler: handler}
}

func (e *SlogExporter) Export(ctx context.Context, records []sdklog.Record) error {
	var errs error
	for i := range records {
		rec := &records[i]
		level := SeverityToLevel(rec.Severity())
		if !e.handler.Enabled(ctx, level) {
			continue
		}

		r := slog.NewRecord(rec.Timestamp(), level, rec.Body().AsString(), 0)
		rec.WalkAttributes(func(kv otellog.KeyValue) bool {
			r.AddAttrs(slog.Attr{Key: kv.Key, Value: convertValue(kv.Value)})
			return true
		})
		if tid := rec.TraceID(); tid.IsValid() {
			r.AddAttrs(slog.String("trace_id", tid.String()))
		}
		if sid := rec.SpanID(); sid.IsValid() {
			r.AddAttrs(slog.String("span_id", sid.String()))
		}
		if scope := rec.InstrumentationScope().Name; scope != "" {
			r.AddAttrs(slog.String("scope", scope))
		}

		errs = errors.Join(errs, e.handler.Handle(ctx, r))
	}
	return errs
}

func (e *SlogExporter) Shutdown(context.Context) error { return nil }

func (e *SlogExporter) ForceFlush(context.Context) error { return nil }

// SeverityToLevel maps OpenTelemetry severities onto slog levels: Info9 is slog.LevelInfo,
// Error17 is slog.LevelError, and so on.
func SeverityToLevel(sev otellog.Severity) slog.Level {
	if sev == otellog.SeverityUndefined {
		return slog.LevelInfo
	}
	return slog.Level(int(sev) - int(otellog.SeverityInfo))
}

func convertValue(v otellog.Value) slog.Value {
	switch v.Kind() {
	case otellog.KindBool:
		return slog.BoolValue(v.AsBool())
	case otellog.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case otellog.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case otellog.KindString:
		return slog.StringValue(v.AsString())
	case otellog.KindBytes:
		return slog.StringValue(string(v.AsBytes()))
	case otellog.KindSlice:
		items := v.AsSlice()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = convertValue(item).Any()
		}
		return slog.AnyValue(out)
	case otellog.KindMap:
		kvs := v.AsMap()
		attrs := make([]slog.Attr, len(kvs))
		for i, kv := range kvs {
			attrs[i] = slog.Attr{Key: kv.Key, Value: convertValue(kv.Value)}
		}
		return slog.GroupValue(attrs...)
	default:
		return slog.StringValue(v.String())
	}
}
