package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"get without content type", "GET", "", http.StatusOK},
		{"post json", "POST", "application/json", http.StatusOK},
		{"post json with charset", "POST", "application/json; charset=utf-8", http.StatusOK},
		{"post missing content type", "POST", "", http.StatusBadRequest},
		{"post wrong content type", "POST", "text/plain", http.StatusUnsupportedMediaType},
		{"patch wrong content type", "PATCH", "application/xml", http.StatusUnsupportedMediaType},
		{"delete without content type", "DELETE", "", http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	mw := MaxRequestSize(10)

	small := httptest.NewRequest("POST", "/", strings.NewReader("tiny"))
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, small)
	if w.Code != http.StatusOK {
		t.Errorf("small body status = %d, want 200", w.Code)
	}

	big := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 100)))
	w = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	SecurityHeaders(false)(okHandler()).ServeHTTP(w, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	// HSTS needs TLS, so a plain request never gets it.
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q on non-TLS request", got)
	}
}

func TestErrorHandlerRecoversPanic(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	req := httptest.NewRequest("GET", "/api/v1/project", nil)
	w := httptest.NewRecorder()
	ErrorHandler(zap.NewNop())(panicking).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "An unexpected error occurred") {
		t.Errorf("body = %q, want generic error message", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Errorf("panic detail leaked to client: %q", w.Body.String())
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest("GET", "/x", nil)
	w := httptest.NewRecorder()
	Logging(zap.NewNop())(handler).ServeHTTP(w, req)
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want passthrough 418", w.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	t.Parallel()

	mw := CORS("https://annotate.example.com, https://other.example.com")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://annotate.example.com")
	w := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://annotate.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	// The local dev origin is always present.
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("localhost origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw, err := RateLimit("2-H")
	if err != nil {
		t.Fatal(err)
	}
	handler := mw(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("request over limit status = %d, want 429", w.Code)
	}

	// A different client keeps its own budget.
	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestRateLimitInvalidFormat(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit("nonsense"); err == nil {
		t.Error("expected error for malformed rate")
	}
}
