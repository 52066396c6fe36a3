package middleware

import (
	"context"
	"net/http"
	"strings"
)

// OperatorHeader carries the ID of the shop floor operator acting on a request
const OperatorHeader = "X-Operator-ID"

// RequestIDHeader carries the request correlation ID
const RequestIDHeader = "X-Request-ID"

type contextKey string

const (
	operatorKey  contextKey = "operator_id"
	requestIDKey contextKey = "request_id"
)

// Operator stores the X-Operator-ID header in the request context.
// Requests without the header pass through unchanged.
func Operator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(OperatorHeader)); id != "" {
			r = r.WithContext(WithOperatorID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// WithOperatorID returns a context carrying the operator ID
func WithOperatorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operatorKey, id)
}

// OperatorFromContext returns the operator ID set by the Operator middleware
func OperatorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorKey).(string)
	return id, ok && id != ""
}

// RequestIDFromContext returns the request ID set by the Logging middleware
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
