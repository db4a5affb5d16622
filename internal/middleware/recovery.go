package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"takaro-dashboard-api/pkg/apierror"
	"takaro-dashboard-api/pkg/response"
	"takaro-dashboard-api/pkg/uid"
)

// Recovery returns a middleware that turns panics into 500 responses.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						"component", "http",
						"panic", err,
						"path", r.URL.Path,
						uid.Attr(r.Context()),
						"stack", string(debug.Stack()),
					)
					response.Error(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
