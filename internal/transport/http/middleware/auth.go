package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/edusphere-api/internal/domain"
	jwtinfra "github.com/edusphere-api/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the Bearer JWT and injects claims into context.
func Auth(verifier tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "Token no proporcionado")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "Token inválido o expirado")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok && c != nil
}

// PrincipalFromContext is ClaimsFromContext narrowed to the caller identity.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return domain.Principal{}, false
	}
	return c.Principal(), true
}

// WithClaims returns a copy of ctx carrying c. Handler tests use it to skip token signing.
func WithClaims(ctx context.Context, c *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
