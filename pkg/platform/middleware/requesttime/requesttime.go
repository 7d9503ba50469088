// Package requesttime captures the current time once at the start of each
// request so every downstream operation observes the same "now".
package requesttime

import (
	"net/http"
	"time"

	"undertone/pkg/requestcontext"
)

// Middleware stores the request arrival time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
