package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// RecoverMiddleware converts panics into a 500 with the generic error
// envelope. The panic value and stack are logged; nothing internal reaches
// the client.
func RecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						slog.String("request_id", requestID(r)),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NotFoundHandler is the default handler for unmatched routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, http.StatusNotFound, "not_found")
}
