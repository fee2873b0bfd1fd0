package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single request when no timeout is given.
// Directory loads probe every image, so the bound is generous.
const DefaultRequestTimeout = 30 * time.Second

// Timeout enforces a per-request deadline: the request context is cancelled
// and the client gets a 503 if the handler overruns.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, "Request Timeout")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
