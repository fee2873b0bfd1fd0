package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize bounds request bodies when no limit is configured.
// Polygon payloads are small; 1MB leaves ample headroom for dense contours.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize caps request body size. Oversized Content-Length is
// rejected up front; chunked bodies are bounded by MaxBytesReader, which
// surfaces as a 413 in the JSON decode path.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
