package middleware

import (
	"net/http"

	"takaro-dashboard-api/pkg/uid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id. A UUID sent in X-Request-ID is
// kept (normalized); anything else is replaced.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := uid.Normalize(r.Header.Get(RequestIDHeader))
		if !ok {
			id = uid.New()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(uid.WithRequestID(r.Context(), id)))
	})
}
