package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/solidqa/partboard/internal/client"
	"github.com/solidqa/partboard/internal/sqlapi"
)

const transportScopeName = "github.com/solidqa/partboard/transport"

// InstrumentedTransport wraps a client.Transport with OTel tracing and
// metrics. Every statement gets a span and is counted in pb.transport.*
// metrics. Use WrapTransport; it returns the original transport
// unchanged when telemetry is disabled.
type InstrumentedTransport struct {
	inner  client.Transport
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapTransport returns t decorated with OTel instrumentation.
// When telemetry is disabled, t is returned as-is with zero overhead.
func WrapTransport(t client.Transport) client.Transport {
	if !Enabled() {
		return t
	}
	m := Meter(transportScopeName)
	ops, _ := m.Int64Counter("pb.transport.operations",
		metric.WithDescription("Total statement operations executed"),
	)
	dur, _ := m.Float64Histogram("pb.transport.operation.duration",
		metric.WithDescription("Statement operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("pb.transport.errors",
		metric.WithDescription("Total statement operation errors"),
	)
	return &InstrumentedTransport{
		inner:  t,
		tracer: Tracer(transportScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

func (t *InstrumentedTransport) op(ctx context.Context, name, table string) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", name),
		attribute.String("db.table", table),
	}
	ctx, span := t.tracer.Start(ctx, "transport."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	t.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now(), attrs
}

func (t *InstrumentedTransport) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	t.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (t *InstrumentedTransport) Select(ctx context.Context, req *sqlapi.SelectRequest) (*sqlapi.QueryResult, error) {
	ctx, span, start, attrs := t.op(ctx, "Select", req.Table)
	res, err := t.inner.Select(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.Int("pb.result.count", res.Count))
	}
	t.done(ctx, span, start, err, attrs)
	return res, err
}

func (t *InstrumentedTransport) Insert(ctx context.Context, req *sqlapi.InsertRequest) ([]map[string]interface{}, error) {
	ctx, span, start, attrs := t.op(ctx, "Insert", req.Table)
	span.SetAttributes(attribute.Int("pb.record.count", len(req.Records)))
	rows, err := t.inner.Insert(ctx, req)
	t.done(ctx, span, start, err, attrs)
	return rows, err
}

func (t *InstrumentedTransport) Update(ctx context.Context, req *sqlapi.UpdateRequest) (*sqlapi.ExecResult, error) {
	ctx, span, start, attrs := t.op(ctx, "Update", req.Table)
	res, err := t.inner.Update(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.Int64("pb.affected.rows", res.AffectedRows))
	}
	t.done(ctx, span, start, err, attrs)
	return res, err
}

func (t *InstrumentedTransport) Delete(ctx context.Context, req *sqlapi.DeleteRequest) (*sqlapi.ExecResult, error) {
	ctx, span, start, attrs := t.op(ctx, "Delete", req.Table)
	res, err := t.inner.Delete(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.Int64("pb.affected.rows", res.AffectedRows))
	}
	t.done(ctx, span, start, err, attrs)
	return res, err
}
