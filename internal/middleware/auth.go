package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/response"
)

// APIKeyHeader is the preferred header for dashboard API keys.
const APIKeyHeader = "X-API-Key"

// NewAuthMiddleware checks X-API-Key (or a bearer token) against keys.
// With no keys configured every request passes.
func NewAuthMiddleware(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				response.Error(w, apierror.Unauthorized("Authentication required. Use the X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, keys) {
				response.Error(w, apierror.Forbidden("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
