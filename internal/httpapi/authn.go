package httpapi

import (
	"context"
	"net/http"
	"strings"

	"cloudops.org/internal/apperr"
	"cloudops.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// TokenValidator turns a bearer token into a caller identity.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Principal, error)
}

var publicPaths = []string{
	"/",
	"/health",
	"/metrics",
	"/docs",
	"/redoc",
	"/openapi.json",
}

var publicPrefixes = []string{
	"/static/",
}

// publicAPIPaths are prefix-relative: the API prefix is prepended at
// route-table build time.
var publicAPIPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a.tokens == nil {
		return next
	}
	open := make(map[string]bool, len(publicPaths)+len(publicAPIPaths))
	for _, p := range publicPaths {
		open[p] = true
	}
	for _, p := range publicAPIPaths {
		open[a.prefix+p] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path, open) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, err)
			return
		}
		principal, err := a.tokens.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperr.Authentication("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", apperr.Authentication("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", apperr.Authentication("missing bearer token")
	}
	return token, nil
}

// callerID returns the authenticated user id, empty for anonymous paths.
func callerID(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	return ""
}

func isPublicPath(path string, open map[string]bool) bool {
	if open[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
