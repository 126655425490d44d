package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrVU        = attribute.Key("vuramp.vu")
	attrIteration = attribute.Key("vuramp.iteration")
	attrRequest   = attribute.Key("vuramp.request")
	attrMethod    = attribute.Key("http.request.method")
	attrURL       = attribute.Key("url.full")
	attrStatus    = attribute.Key("http.response.status_code")
)

// StartIteration opens the root span of one VU iteration.
func StartIteration(ctx context.Context, tracer trace.Tracer, vu int, iteration int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "iteration",
		trace.WithNewRoot(),
		trace.WithAttributes(attrVU.Int(vu), attrIteration.Int64(iteration)),
	)
}

// StartRequest opens a client span for one request. The span is named
// "METHOD name", or just the method for unnamed requests.
func StartRequest(ctx context.Context, tracer trace.Tracer, method, name, url string) (context.Context, trace.Span) {
	spanName := method
	if name != "" {
		spanName += " " + name
	}
	attrs := []attribute.KeyValue{attrMethod.String(method), attrURL.String(url)}
	if name != "" {
		attrs = append(attrs, attrRequest.String(name))
	}
	return tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndRequest records the response status, if any, and ends span.
func EndRequest(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attrStatus.Int(status))
	}
	End(span, err)
}

// End sets the span status from err and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Inject writes the trace context of ctx into h. A nil propagator does
// nothing.
func Inject(ctx context.Context, p propagation.TextMapPropagator, h http.Header) {
	if p == nil {
		return
	}
	p.Inject(ctx, propagation.HeaderCarrier(h))
}
