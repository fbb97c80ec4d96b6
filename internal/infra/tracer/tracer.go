package tracer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"kaiheila/internal/domain"
	"kaiheila/internal/infra/config"
)

const tracerName = "kaiheila"

// Attribute keys recorded on API request spans.
const (
	AttrRequestID = "kaiheila.request_id"
	AttrMethod    = "http.method"
	AttrPath      = "kaiheila.path"
	AttrStatus    = "http.status_code"
	AttrErrorCode = "kaiheila.error_code"
	AttrAPICode   = "kaiheila.code"
)

// Setup initializes OpenTelemetry tracing and returns a shutdown function.
// When cfg.Enabled is false, a noop TracerProvider is used.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	case "noop", "":
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartSpan starts a named span on the global provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// Finish sets the span status from err and ends the span.
func Finish(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		SetOK(span)
	}
	span.End()
}

// RecordError records an error on the span and sets error status.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK sets the span status to OK.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// StartRequest starts the client span for one API request.
func StartRequest(ctx context.Context, requestID, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, "kaiheila.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrRequestID, requestID),
			attribute.String(AttrMethod, method),
			attribute.String(AttrPath, path),
		),
	)
}

// EndRequest records the HTTP status and outcome of an API request and ends
// the span. Failures carry their error code, and CodeNotZero failures also
// carry the API's own code.
func EndRequest(span trace.Span, status int, err error) {
	if status != 0 {
		span.SetAttributes(attribute.Int(AttrStatus, status))
	}
	if err != nil {
		span.SetAttributes(attribute.String(AttrErrorCode, string(domain.ErrorCodeOf(err))))
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == domain.ErrCodeNotZero {
			span.SetAttributes(attribute.Int64(AttrAPICode, apiErr.Code))
		}
	}
	Finish(span, err)
}
