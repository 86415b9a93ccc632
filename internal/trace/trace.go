// Package trace carries W3C-style trace and span IDs through contexts,
// gRPC metadata, HTTP headers and bridge frames, and hands out loggers
// tagged with them.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Propagation keys, shared by gRPC metadata and HTTP headers.
const (
	TraceIDKey      = "x-trace-id"
	SpanIDKey       = "x-span-id"
	ParentSpanIDKey = "x-parent-span-id"
)

type ctxKey struct{}

// Context identifies one span within a trace.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
}

// New starts a fresh trace.
func New() Context {
	return Context{TraceID: randomHex(16), SpanID: randomHex(8)}
}

// Child derives a span under c. A zero parent starts a new trace.
func (c Context) Child() Context {
	if c.TraceID == "" {
		return New()
	}
	return Context{TraceID: c.TraceID, SpanID: randomHex(8), ParentSpanID: c.SpanID}
}

// FromContext returns the trace context stored in ctx.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// EnsureContext returns ctx unchanged if it already carries a trace.
func EnsureContext(ctx context.Context) (context.Context, Context) {
	if tc, ok := FromContext(ctx); ok {
		return ctx, tc
	}
	tc := New()
	return WithContext(ctx, tc), tc
}

// Remote builds the local span for a call that arrived carrying traceID and
// the caller's span. Missing IDs start a new trace.
func Remote(traceID, callerSpan string) Context {
	if traceID == "" {
		return New()
	}
	return Context{TraceID: traceID, SpanID: randomHex(8), ParentSpanID: callerSpan}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (c Context) logArgs() []any {
	args := []any{"trace_id", c.TraceID, "span_id", c.SpanID}
	if c.ParentSpanID != "" {
		args = append(args, "parent_span_id", c.ParentSpanID)
	}
	return args
}

// Logger returns the default logger tagged with ctx's trace, if any.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With(tc.logArgs()...)
}

// Span times one operation. End logs it at debug level.
type Span struct {
	Name  string
	Ctx   Context
	Start time.Time
	end   time.Time
	attrs []any
	err   error
}

// StartSpan opens a span as a child of whatever trace ctx carries.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	s := &Span{Name: name, Ctx: parent.Child(), Start: time.Now()}
	return WithContext(ctx, s.Ctx), s
}

// SetAttr adds a key/value to the span's log line.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, key, val)
}

// RecordError marks the span failed.
func (s *Span) RecordError(err error) {
	s.err = err
}

// Duration is zero until End.
func (s *Span) Duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.Start)
}

// End closes the span; calling it twice is a no-op.
func (s *Span) End() {
	if !s.end.IsZero() {
		return
	}
	s.end = time.Now()
	args := append(s.Ctx.logArgs(), "span", s.Name, "duration", s.Duration())
	args = append(args, s.attrs...)
	if s.err != nil {
		slog.Default().Warn("span failed", append(args, "error", s.err)...)
		return
	}
	slog.Default().Debug("span", args...)
}
