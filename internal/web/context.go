package web

import (
	"net/http"

	"github.com/JonMunkholm/BitSlicer/internal/core"
)

// withClientIP stores the client address for job history. It runs after
// TrustedRealIP so proxied requests record the original client.
func withClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithClientIP(r.Context(), remoteHost(r.RemoteAddr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
