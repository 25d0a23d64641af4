// Package requestcontext carries request-scoped values from middleware to
// services without importing net/http.
//
// Middleware sets values with the With* functions; services and stores read
// them back:
//
//	actor := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests outside the HTTP chain inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixed)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.5")
package requestcontext

import (
	"context"
	"time"

	id "vendemos/pkg/domain"
)

type key int

const (
	keyUserID key = iota
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// UserID is the authenticated actor, or the nil ID for anonymous requests.
func UserID(ctx context.Context) id.UserID {
	userID, _ := value[id.UserID](ctx, keyUserID)
	return userID
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func ClientIP(ctx context.Context) string {
	ip, _ := value[string](ctx, keyClientIP)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := value[string](ctx, keyUserAgent)
	return ua
}

// WithClientMetadata records the caller's address and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string {
	reqID, _ := value[string](ctx, keyRequestID)
	return reqID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the time the request arrived. Outside a request (workers, tests
// without WithTime) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, keyRequestTime); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the value Now returns for ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
