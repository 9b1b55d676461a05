package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWith(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func noContent() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestWithSecurityHeaders(t *testing.T) {
	rec := serveWith(WithSecurityHeaders(noContent()), http.MethodGet, "/api/dreams", nil)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options mismatch: %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options mismatch: %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store on api responses, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("did not expect HSTS for non-https request, got %q", got)
	}

	rec = serveWith(WithSecurityHeaders(noContent()), http.MethodGet, "/healthz", http.Header{"X-Forwarded-Proto": {"https"}})
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Fatalf("health checks should stay cacheable, got %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got == "" {
		t.Fatalf("expected HSTS header on forwarded https request")
	}
}

func TestWithCORSAnswersPreflight(t *testing.T) {
	called := false
	h := WithCORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := serveWith(h, http.MethodOptions, "/api/dreams", nil)
	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("preflight should be answered without the handler, code=%d called=%v", rec.Code, called)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("unexpected max age %q", got)
	}

	rec = serveWith(h, http.MethodGet, "/api/dreams", nil)
	if !called {
		t.Fatalf("expected handler to run for GET")
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != RequestIDHeader+", Retry-After" {
		t.Fatalf("unexpected exposed headers %q", got)
	}
}
