package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cloudops.org/internal/audit"
	"cloudops.org/internal/obs"
)

const correlationHeader = "X-Correlation-ID"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging assigns each request a correlation id, echoes it in the response
// header, and emits started/completed JSON lines.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := strings.TrimSpace(r.Header.Get(correlationHeader))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set(correlationHeader, correlationID)
		ctx := audit.WithCorrelationID(r.Context(), correlationID)
		r = r.WithContext(ctx)

		ip := clientIP(r)
		obs.Info("request started", map[string]any{
			"method":         r.Method,
			"path":           r.URL.Path,
			"client_ip":      ip,
			"correlation_id": correlationID,
		})

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		d := time.Since(start)

		fields := map[string]any{
			"method":         r.Method,
			"path":           r.URL.Path,
			"status":         sw.code,
			"duration_ms":    d.Milliseconds(),
			"client_ip":      ip,
			"correlation_id": correlationID,
		}
		if sw.code >= http.StatusInternalServerError {
			obs.Error("request failed", fields)
		} else {
			obs.Info("request completed", fields)
		}
	})
}

// SecurityHeaders sets the hardening header set on every response. HSTS is
// only sent when the deployment terminates TLS.
func SecurityHeaders(next http.Handler, hsts bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; "+
				"img-src 'self' data:; "+
				"style-src 'self' 'unsafe-inline'; "+
				"script-src 'self'; "+
				"frame-ancestors 'none'")
		if hsts {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// CORS reflects allowed origins. "*" in the list allows any origin.
func CORS(next http.Handler, origins []string) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Correlation-ID")
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TrustedHost rejects requests whose Host is not on the allow-list. An empty
// list disables the check.
func TrustedHost(next http.Handler, hosts []string) http.Handler {
	if len(hosts) == 0 {
		return next
	}
	allowed := make(map[string]bool, len(hosts))
	allowAll := false
	for _, h := range hosts {
		if h == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(h)] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := strings.ToLower(r.Host)
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = strings.ToLower(h)
		}
		if !allowAll && !allowed[host] {
			http.Error(w, "invalid host header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const sessionCookie = "cloudops_session"

// Session issues an HMAC-signed session cookie when the request carries none
// or carries one with a bad signature.
func Session(next http.Handler, secret string, maxAge time.Duration) http.Handler {
	if secret == "" {
		return next
	}
	key := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err == nil && validSession(c.Value, key) {
			next.ServeHTTP(w, r)
			return
		}
		id := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    signSession(id, key),
			Path:     "/",
			MaxAge:   int(maxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		next.ServeHTTP(w, r)
	})
}

func signSession(id string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return id + "." + sig
}

func validSession(value string, key []byte) bool {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return false
	}
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	return hmac.Equal(want, mac.Sum(nil))
}

// clientIP resolves the caller address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
