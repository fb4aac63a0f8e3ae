package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation identifier. Payment provider
// retries that resend the header keep the same identifier across attempts.
const RequestIDHeader = "X-Request-Id"

type correlationKey struct{}

// WithCorrelationID stores id in ctx for later log enrichment.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the stored correlation identifier, or an
// empty string when the request did not pass through Middleware.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Middleware tags every request with a correlation identifier: an inbound
// X-Request-Id is reused, otherwise one is generated. The identifier is
// echoed in the response so callers can quote it when reporting problems.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}
