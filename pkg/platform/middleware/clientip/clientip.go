// Package clientip exposes the caller's network address to services through
// the request context. The lockout policy embeds it in lock reasons.
package clientip

import (
	"net"
	"net/http"

	"undertone/pkg/requestcontext"
)

// Middleware records the remote address. X-Forwarded-For is deliberately not
// consulted: this server is designed to face clients directly, and trusting
// the header would let an attacker spoof the origin recorded in lock reasons.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ctx := requestcontext.WithClientIP(r.Context(), host)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
