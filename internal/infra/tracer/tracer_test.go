package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"kaiheila/internal/domain"
	"kaiheila/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	_, ok := otel.GetTracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", otel.GetTracerProvider())
}

func TestSetupExporters(t *testing.T) {
	for _, exp := range []string{"noop", "", "stdout"} {
		t.Run(exp, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: exp})
			require.NoError(t, err)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestFinishRecordsStatus(t *testing.T) {
	rec := recordSpans(t)

	_, okSpan := StartSpan(context.Background(), "ok")
	Finish(okSpan, nil)
	_, errSpan := StartSpan(context.Background(), "failed")
	Finish(errSpan, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "boom", ended[1].Status().Description)
	assert.Len(t, ended[1].Events(), 1)
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestRequestSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartRequest(context.Background(), "01J0REQ", "GET", "/guild/view")
	EndRequest(span, 200, nil)

	_, span = StartRequest(context.Background(), "01J0REQ2", "GET", "/guild/view")
	EndRequest(span, 200, &domain.APIError{Kind: domain.ErrCodeNotZero, Code: 41001, Message: "guild not found"})

	_, span = StartRequest(context.Background(), "01J0REQ3", "POST", "/guild/leave")
	EndRequest(span, 0, &domain.APIError{Kind: domain.ErrRequestFailed, Err: errors.New("connection refused")})

	ended := rec.Ended()
	require.Len(t, ended, 3)

	ok := spanAttrs(ended[0])
	assert.Equal(t, "kaiheila.request", ended[0].Name())
	assert.Equal(t, trace.SpanKindClient, ended[0].SpanKind())
	assert.Equal(t, "01J0REQ", ok[AttrRequestID].AsString())
	assert.Equal(t, "GET", ok[AttrMethod].AsString())
	assert.Equal(t, "/guild/view", ok[AttrPath].AsString())
	assert.Equal(t, int64(200), ok[AttrStatus].AsInt64())
	assert.NotContains(t, ok, attribute.Key(AttrErrorCode))
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	notZero := spanAttrs(ended[1])
	assert.Equal(t, string(domain.CodeCodeNotZero), notZero[AttrErrorCode].AsString())
	assert.Equal(t, int64(41001), notZero[AttrAPICode].AsInt64())
	assert.Equal(t, codes.Error, ended[1].Status().Code)

	failed := spanAttrs(ended[2])
	assert.NotContains(t, failed, attribute.Key(AttrStatus))
	assert.NotContains(t, failed, attribute.Key(AttrAPICode))
	assert.Equal(t, string(domain.CodeRequestFailed), failed[AttrErrorCode].AsString())
}
