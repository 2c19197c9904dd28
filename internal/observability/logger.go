package observability

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	initOnce     sync.Once
	sugar        *zap.SugaredLogger
	debugEnabled bool
)

func init() {
	if os.Getenv("DEBUG") != "" || os.Getenv("BEACON_DEBUG") != "" {
		debugEnabled = true
	}
}

func logger() *zap.SugaredLogger {
	initOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		if debugEnabled {
			cfg = zap.NewDevelopmentConfig()
		}
		base, err := cfg.Build()
		if err != nil {
			base = zap.NewNop()
		}
		sugar = base.Sugar()
	})
	return sugar
}

// SetDebug toggles debug-level logging at runtime, so the logLevel system
// config key (§6) can override the BEACON_DEBUG env escape hatch.
func SetDebug(enabled bool) {
	debugEnabled = enabled
	initOnce = sync.Once{}
}

// Debug logs debug-level messages with structured key/value fields.
func Debug(ctx context.Context, msg string, kv ...interface{}) {
	if !debugEnabled {
		return
	}
	withTrace(ctx, kv).Debugw(msg)
}

// Info logs info-level messages with structured key/value fields.
func Info(ctx context.Context, msg string, kv ...interface{}) {
	withTrace(ctx, kv).Infow(msg)
}

// Warn logs warning-level messages with structured key/value fields.
func Warn(ctx context.Context, msg string, kv ...interface{}) {
	withTrace(ctx, kv).Warnw(msg)
}

// Error logs error-level messages with structured key/value fields.
func Error(ctx context.Context, msg string, kv ...interface{}) {
	withTrace(ctx, kv).Errorw(msg)
}

func withTrace(ctx context.Context, kv []interface{}) *zap.SugaredLogger {
	l := logger()
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		kv = append(kv, "trace_id", span.SpanContext().TraceID().String())
	}
	if len(kv) == 0 {
		return l
	}
	return l.With(kv...)
}

// IsDebugEnabled reports whether debug-level logging is active.
func IsDebugEnabled() bool {
	return debugEnabled
}
