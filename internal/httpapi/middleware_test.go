package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type errorEnvelope struct {
	Error struct {
		Type    string         `json:"type"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return env
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler(), false)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Permissions-Policy":     "geolocation=(), microphone=(), camera=()",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS set without TLS termination")
	}

	rr = httptest.NewRecorder()
	SecurityHeaders(okHandler(), true).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("HSTS missing in production mode")
	}
}

func TestCORS(t *testing.T) {
	h := CORS(okHandler(), []string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allowed origin not reflected: %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("credentials header missing for allowed origin")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin reflected")
	}

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
}

func TestCORSWildcard(t *testing.T) {
	h := CORS(okHandler(), []string{"*"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example.com" {
		t.Fatalf("wildcard origin not reflected: %q", got)
	}
}

func TestTrustedHost(t *testing.T) {
	h := TrustedHost(okHandler(), []string{"api.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "api.example.com:8000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("listed host rejected: %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "evil.example.com"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unlisted host status = %d, want 400", rr.Code)
	}

	// Empty allow-list disables the check.
	rr = httptest.NewRecorder()
	TrustedHost(okHandler(), nil).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("disabled check rejected: %d", rr.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	h := Session(okHandler(), "session-secret", time.Hour)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie {
		t.Fatalf("session cookie not issued: %v", cookies)
	}
	if !validSession(cookies[0].Value, []byte("session-secret")) {
		t.Fatal("issued cookie fails validation")
	}

	// A valid cookie is not reissued.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("valid session cookie reissued")
	}

	// A tampered cookie is replaced.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "forged.c2ln"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 1 {
		t.Fatal("tampered session cookie accepted")
	}
}

func TestLoggingCorrelationID(t *testing.T) {
	h := Logging(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(correlationHeader, "corr-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(correlationHeader); got != "corr-42" {
		t.Fatalf("inbound correlation id not echoed: %q", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get(correlationHeader) == "" {
		t.Fatal("correlation id not generated")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2).WithClock(func() time.Time { return now })

	if !l.Allow("c1") || !l.Allow("c1") {
		t.Fatal("requests within limit rejected")
	}
	if l.Allow("c1") {
		t.Fatal("request over limit allowed")
	}
	if !l.Allow("c2") {
		t.Fatal("limits shared across clients")
	}

	now = now.Add(rateWindow + time.Second)
	if !l.Allow("c1") {
		t.Fatal("request rejected after window expiry")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	now := time.Now()
	l := NewRateLimiter(1).WithClock(func() time.Time { return now })
	h := l.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:55000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	env := decodeError(t, rr)
	if env.Error.Type != apperr.TypeRateLimitExceeded {
		t.Fatalf("error type = %q", env.Error.Type)
	}
}

func TestLoginThrottleBurst(t *testing.T) {
	th := NewLoginThrottle(10, 3)
	for i := 0; i < 3; i++ {
		if !th.Allow("10.0.0.1") {
			t.Fatalf("attempt %d within burst denied", i+1)
		}
	}
	if th.Allow("10.0.0.1") {
		t.Fatal("attempt over burst allowed")
	}
	if !th.Allow("10.0.0.2") {
		t.Fatal("throttle shared across clients")
	}
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(_ context.Context, token string) (auth.Principal, error) {
	if token != "good" {
		return auth.Principal{}, apperr.Authentication("invalid token")
	}
	return auth.Principal{UserID: "user-1", Roles: []string{"admin"}}, nil
}

func TestWithAuth(t *testing.T) {
	var seen auth.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	a := &API{prefix: "/api/v1", tokens: fakeValidator{}}
	h := a.withAuth(next)

	// Missing token on a protected path.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("WWW-Authenticate challenge missing")
	}
	env := decodeError(t, rr)
	if env.Error.Type != apperr.TypeAuthentication {
		t.Fatalf("error type = %q", env.Error.Type)
	}

	// Valid token attaches the principal.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set(authHeader, "Bearer good")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if seen.UserID != "user-1" {
		t.Fatalf("principal = %+v", seen)
	}

	// Public paths and preflight skip authentication.
	for _, path := range []string{"/health", "/api/v1/auth/login", "/static/app.css"} {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("public path %s status = %d", path, rr.Code)
		}
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rr.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("empty header accepted")
	}
	if _, err := extractBearerToken("Basic dXNlcg=="); err == nil {
		t.Fatal("basic scheme accepted")
	}
	if _, err := extractBearerToken("Bearer "); err == nil {
		t.Fatal("empty token accepted")
	}
	tok, err := extractBearerToken("bearer abc.def")
	if err != nil {
		t.Fatalf("case-insensitive scheme rejected: %v", err)
	}
	if tok != "abc.def" {
		t.Fatalf("token = %q", tok)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:44321"
	if got := clientIP(req); got != "192.0.2.10" {
		t.Fatalf("peer ip = %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Fatalf("real ip = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("forwarded ip = %q", got)
	}
}
