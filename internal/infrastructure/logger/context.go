package logger

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	runIDKey     contextKey = "run_id"
	tenantIDKey  contextKey = "tenant_id"
	paymentIDKey contextKey = "payment_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger from context, a no-op logger if none is attached
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRunID tags a scheduled job or CLI invocation. An empty id gets a fresh one.
func WithRunID(ctx context.Context, l *zap.Logger, runID string) (context.Context, *zap.Logger) {
	if runID == "" {
		runID = uuid.NewString()
	}
	return enrich(ctx, l, runIDKey, runID)
}

// WithTenantID adds the tenant ID to context and returns the enriched logger
func WithTenantID(ctx context.Context, l *zap.Logger, tenantID uuid.UUID) (context.Context, *zap.Logger) {
	return enrich(ctx, l, tenantIDKey, tenantID.String())
}

// WithPaymentID adds the payment ID to context and returns the enriched logger
func WithPaymentID(ctx context.Context, l *zap.Logger, paymentID uuid.UUID) (context.Context, *zap.Logger) {
	return enrich(ctx, l, paymentIDKey, paymentID.String())
}

func enrich(ctx context.Context, l *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := l.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

func valueOf(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string { return valueOf(ctx, runIDKey) }

// GetTenantID retrieves the tenant ID from context
func GetTenantID(ctx context.Context) string { return valueOf(ctx, tenantIDKey) }

// GetPaymentID retrieves the payment ID from context
func GetPaymentID(ctx context.Context) string { return valueOf(ctx, paymentIDKey) }

// TraceFields returns trace_id and span_id for the context's span, nil without a valid span
func TraceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

// WithTraceContext adds trace_id and span_id to the logger when the context carries a span
func WithTraceContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if fields := TraceFields(ctx); fields != nil {
		return l.With(fields...)
	}
	return l
}

// ContextLogger logs with trace correlation pulled from its context.
//
// Usage: logger.L(ctx).Info("invoices generated", zap.Int("generated", n))
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger over the logger attached to ctx
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger over l instead of the context's logger
func WithLogger(ctx context.Context, l *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: l}
}

// The context's own logger already carries run/tenant/payment fields from
// the With* helpers, so only trace ids are added here.
func (cl *ContextLogger) enriched() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	return WithTraceContext(cl.ctx, l)
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.enriched().With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.enriched().Debug(msg, fields...) }
func (cl *ContextLogger) Info(msg string, fields ...zap.Field)  { cl.enriched().Info(msg, fields...) }
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field)  { cl.enriched().Warn(msg, fields...) }
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.enriched().Error(msg, fields...) }

// Zap returns the underlying logger enriched with trace context
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
