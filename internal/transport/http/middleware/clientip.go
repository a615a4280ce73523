package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/edusphere-api/internal/application/audit"
)

// ClientIP stores the caller's address in the request context for audit records.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithClientIP(r.Context(), realIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// realIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the socket peer.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
