// Package requestid assigns each request a correlation id, exposed both in
// the context (for log lines) and in the X-Request-ID response header.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"undertone/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware honors an inbound X-Request-ID when present, otherwise mints a
// fresh UUID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
