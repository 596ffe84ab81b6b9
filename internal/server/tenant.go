package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// TenantGuard validates the X-Tenant-ID header and binds the normalized
// tenant id to the request context. The header must appear exactly once and
// carry a canonical UUID. All failure causes map to the same generic 400 so
// the response does not reveal which check tripped; the distinction lives in
// the logs only.
func TenantGuard(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values := r.Header.Values(httpx.HeaderTenantID)
			if len(values) > 1 {
				logger.Warn("tenant header duplicated",
					slog.String("request_id", requestID(r)),
					slog.Int("count", len(values)),
				)
				httpx.WriteError(w, http.StatusBadRequest, "invalid_tenant")
				return
			}

			var raw string
			if len(values) == 1 {
				raw = strings.TrimSpace(values[0])
			}
			if !isCanonicalUUID(raw) {
				logger.Warn("tenant header missing or malformed",
					slog.String("request_id", requestID(r)),
				)
				httpx.WriteError(w, http.StatusBadRequest, "invalid_tenant")
				return
			}

			if rc := httpx.GetRequestContext(r.Context()); rc != nil {
				rc.TenantID = strings.ToLower(raw)
			}
			AddLogField(r.Context(), "tenant_id", strings.ToLower(raw))
			next.ServeHTTP(w, r)
		})
	}
}

// isCanonicalUUID accepts only the 8-4-4-4-12 form; uuid.Parse alone also
// admits braced, URN and undashed variants.
func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func requestID(r *http.Request) string {
	if rc := httpx.GetRequestContext(r.Context()); rc != nil {
		return rc.RequestID
	}
	return ""
}
