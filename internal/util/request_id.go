package util

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type requestIDContextKey struct{}

const (
	// RequestIDHeader is propagated between the journal service and the AI gateway.
	RequestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

// WithRequestID propagates an incoming request id or generates one when absent.
// The id lands on the response header and the request context, along with a
// child logger carrying "request_id" for LoggerFromContext.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = NewID()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := ContextWithRequestID(r.Context(), requestID)
		ctx = ContextWithLogger(ctx, slog.Default().With("request_id", requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ContextWithRequestID stores id for outbound calls made on behalf of a request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// RequestIDFromRequest returns request id from request context.
func RequestIDFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return RequestIDFromContext(r.Context())
}
