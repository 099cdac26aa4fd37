// Package middleware provides the HTTP middleware chain: CORS, request
// logging, bearer-token authentication, and per-client rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// TokenVerifier turns a bearer token string into a verified principal.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// publicPaths are reachable without a token. The websocket route is public at
// the HTTP layer; its messages carry no privileged operations.
var publicPaths = []string{
	"/api/register",
	"/api/login",
	"/api/health",
	"/ws/",
}

// Auth returns middleware that validates the Authorization bearer token and
// stores the resulting principal in the request context. Requests to public
// paths pass through untouched.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearer(r)
			if token == "" {
				writeUnauthorized(w, "missing authentication token")
				return
			}
			p, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the verified principal stored by Auth, if any.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

func isPublic(path string) bool {
	for _, p := range publicPaths {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// extractBearer looks for a token in the Authorization header (Bearer scheme).
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
