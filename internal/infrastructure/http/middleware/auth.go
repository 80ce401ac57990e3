package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/melodex/melodex/internal/infrastructure/http/response"
)

// Auth is HTTP middleware validating the static bearer token on job
// invocations. An empty configured token disables the check, which is only
// meant for local development.
type Auth struct {
	token string
}

// NewAuth creates the auth middleware.
func NewAuth(token string) *Auth {
	return &Auth{token: token}
}

// Validate checks the Authorization header. Expects "Bearer <token>".
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			slog.WarnContext(r.Context(), "authentication failed: missing Authorization header",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "missing Authorization header")
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			slog.WarnContext(r.Context(), "authentication failed: invalid Authorization header format",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid Authorization header format, expected: Bearer <token>")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			slog.WarnContext(r.Context(), "authentication failed: invalid token",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
