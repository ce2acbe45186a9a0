package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards mutating endpoints with a static bearer token. A
// missing configured token means the deployment is misconfigured, so
// requests are refused rather than silently allowed.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "authentication is not configured", http.StatusInternalServerError)
				return
			}

			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				http.Error(w, "invalid or missing token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
