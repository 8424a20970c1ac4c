package middleware

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/weddingcard/server/internal/observability"
)

// AdminKeyAuth creates middleware that checks the admin key header against
// a bcrypt hash. With an empty hash every request is refused, so admin
// routes stay closed until a key is configured.
func AdminKeyAuth(keyHash, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "X-Admin-Key"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				unauthorized(w, http.StatusForbidden, "Admin access is not configured.")
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				unauthorized(w, http.StatusUnauthorized, "Admin key is required.")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(providedKey)); err != nil {
				observability.WithContext(r.Context()).WithField("remote_addr", r.RemoteAddr).Warn("Invalid admin key")
				unauthorized(w, http.StatusUnauthorized, "Invalid admin key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
