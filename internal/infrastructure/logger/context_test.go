package logger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l, _ := observed()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestWithIDs(t *testing.T) {
	l, logs := observed()
	tenantID := uuid.New()
	paymentID := uuid.New()

	ctx, _ := WithRunID(context.Background(), l, "run-42")
	ctx, _ = WithTenantID(ctx, FromContext(ctx), tenantID)
	ctx, enriched := WithPaymentID(ctx, FromContext(ctx), paymentID)

	assert.Equal(t, "run-42", GetRunID(ctx))
	assert.Equal(t, tenantID.String(), GetTenantID(ctx))
	assert.Equal(t, paymentID.String(), GetPaymentID(ctx))

	enriched.Info("allocated")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-42", fields["run_id"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Equal(t, paymentID.String(), fields["payment_id"])
}

func TestWithRunID_GeneratesWhenEmpty(t *testing.T) {
	l, _ := observed()
	ctx, _ := WithRunID(context.Background(), l, "")
	_, err := uuid.Parse(GetRunID(ctx))
	assert.NoError(t, err)
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetTenantID(ctx))
	assert.Empty(t, GetPaymentID(ctx))
	assert.Nil(t, TraceFields(ctx))
}

func TestContextLogger_AddsTraceIDs(t *testing.T) {
	l, logs := observed()
	ctx := WithContext(spanContext(t), l)

	L(ctx).With(zap.Int("generated", 3)).Info("monthly invoices generated")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", fields["trace_id"])
	assert.Equal(t, "b7ad6b7169203331", fields["span_id"])
	assert.EqualValues(t, 3, fields["generated"])
}

func TestContextLogger_WithoutSpan(t *testing.T) {
	l, logs := observed()
	cl := WithLogger(context.Background(), l)

	cl.Debug("d")
	cl.Warn("w")
	cl.Error("e")
	assert.NotNil(t, cl.Zap())

	require.Equal(t, 3, logs.Len())
	_, hasTrace := logs.All()[0].ContextMap()["trace_id"]
	assert.False(t, hasTrace)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() { cl.Info("dropped") })
}
