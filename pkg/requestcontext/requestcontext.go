// Package requestcontext stores request-scoped values (request ID, caller identity,
// client metadata, request time) behind typed accessors.
package requestcontext

import (
	"context"
	"time"

	id "trustbridge/pkg/domain"
)

type (
	ctxKeyRequestID struct{}
	ctxKeyUserID    struct{}
	ctxKeyRole      struct{}
	ctxKeyClientIP  struct{}
	ctxKeyUserAgent struct{}
	ctxKeyTime      struct{}
	ctxKeyInternal  struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, requestID)
}

// RequestID returns the request ID or an empty string.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, userID)
}

// UserID returns the authenticated user, or a nil ID for anonymous requests.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(ctxKeyUserID{}).(id.UserID)
	return v
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole{}, role)
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRole{}).(string)
	return v
}

// WithInternalCaller marks the request as authenticated by the shared internal token.
func WithInternalCaller(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyInternal{}, true)
}

func IsInternalCaller(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyInternal{}).(bool)
	return v
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyClientIP{}, clientIP)
	return context.WithValue(ctx, ctxKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent{}).(string)
	return v
}

// WithTime pins "now" for the rest of the request so every timestamp written
// while serving it agrees.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyTime{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() outside HTTP.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
