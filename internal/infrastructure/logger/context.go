package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	clinicIDKey  contextKey = "clinic_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithClinicID stores the authenticated clinic id on ctx.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicIDKey, clinicID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// GetClinicID retrieves the clinic id from context
func GetClinicID(ctx context.Context) string {
	if v, ok := ctx.Value(clinicIDKey).(string); ok {
		return v
	}
	return ""
}

// L returns the context logger enriched with trace_id, span_id, request_id
// and clinic_id when they are present on ctx.
//
//	logger.L(ctx).Info("report saved", zap.String("report_id", id))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		l = l.With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		l = l.With(zap.String("request_id", requestID))
	}
	if clinicID := GetClinicID(ctx); clinicID != "" {
		l = l.With(zap.String("clinic_id", clinicID))
	}
	return l
}
