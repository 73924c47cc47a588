// Package middleware provides HTTP middleware for the API layer.
package middleware

import (
	"net/http"

	"github.com/wortweg/wortweg-api/internal/api/shared"
)

// TraceID assigns each request a trace ID so its logs and error responses
// can be correlated.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
