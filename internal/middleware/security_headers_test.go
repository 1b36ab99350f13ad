package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveWithHeaders(env string, req *http.Request) *httptest.ResponseRecorder {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: env})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_Production(t *testing.T) {
	w := serveWithHeaders("production", httptest.NewRequest("GET", "/", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Cache-Control", "no-store"},
		{"Cross-Origin-Opener-Policy", "same-origin"},
	}
	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.expected {
			t.Errorf("Header %s: got %q, want %q", tt.header, got, tt.expected)
		}
	}

	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'none'") {
		t.Errorf("production CSP should forbid framing, got %q", csp)
	}
	if strings.Contains(csp, "unsafe-eval") {
		t.Errorf("production CSP should not allow unsafe-eval, got %q", csp)
	}
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should only be sent over HTTPS, got %q", hsts)
	}
}

func TestSecurityHeaders_ProductionHTTPS(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	if hsts := serveWithHeaders("production", req).Header().Get("Strict-Transport-Security"); hsts == "" {
		t.Error("HSTS missing behind TLS-terminating proxy")
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.TLS = &tls.ConnectionState{}
	if hsts := serveWithHeaders("production", req).Header().Get("Strict-Transport-Security"); hsts == "" {
		t.Error("HSTS missing on direct TLS")
	}
}

func TestSecurityHeaders_Development(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := serveWithHeaders("development", req)

	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "ws:") {
		t.Errorf("development CSP should allow plain websocket connections, got %q", csp)
	}
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be sent in development, got %q", hsts)
	}
}
