package auth

import (
	"net/http"
	"strings"
)

// Middleware accepts either a static API key (SANDBOXD_API_KEY) or a
// bearer JWT verified by verifier, attaching the resolved user ID to the
// request context. When apiKey is empty and verifier is nil, every request
// is treated as authenticated under the fixed "dev" user (local/dev mode).
func Middleware(apiKey string, verifier *Verifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" && verifier == nil {
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), "dev")))
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			writeUnauthorized(w, "missing bearer token")
			return
		}

		if apiKey != "" && token == apiKey {
			userID := r.Header.Get("X-User-Id")
			if userID == "" {
				userID = "api-key"
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
			return
		}

		if verifier != nil {
			userID, err := verifier.VerifyToken(token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
				return
			}
		}

		writeUnauthorized(w, "invalid or expired token")
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error_code":"AUTH_REQUIRED","message":"` + message + `"}`))
}
