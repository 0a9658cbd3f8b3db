// internal/logger/span.go
//
// Request-scoped spans on top of zap.
//
// A span is a child logger carrying a name, a correlation id, and any
// caller-supplied fields.  It rides in context.Context, so code deeper in
// the call chain logs through FromContext and inherits every field without
// threading them by hand.
package logger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithContext returns a copy of ctx that carries l.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithContext or StartSpan, or a
// no-op logger when none is present.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Span marks one logical operation.
type Span struct {
	log   *zap.Logger
	name  string
	id    uuid.UUID
	start time.Time
}

// StartSpan opens a span named name under base.  When ctx already carries a
// request id (see WithRequestID) the span reuses it, otherwise a fresh v4
// UUID becomes the correlation id.
func StartSpan(ctx context.Context, base *zap.Logger, name string, fields ...zap.Field) (context.Context, *Span) {
	id, ok := RequestID(ctx)
	if !ok {
		id = uuid.New()
	}

	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, zap.String("span", name), zap.Stringer("request_id", id))
	fs = append(fs, fields...)

	s := &Span{
		log:   base.With(fs...),
		name:  name,
		id:    id,
		start: time.Now(),
	}
	s.log.Debug("span opened")
	return WithContext(ctx, s.log), s
}

// ID is the correlation id attached to every event in the span.
func (s *Span) ID() uuid.UUID { return s.id }

// End logs the span's elapsed time.
func (s *Span) End() {
	s.log.Debug("span closed", zap.Duration("elapsed", time.Since(s.start)))
}

type requestIDKey struct{}

// WithRequestID stores the request correlation id in ctx.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey{}).(uuid.UUID)
	return id, ok
}
