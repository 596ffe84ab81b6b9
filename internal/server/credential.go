package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// CredentialValidator checks the caller's credential against the configured
// allow-list. The credential is read from X-API-Key first, then from a Bearer
// token in the Authorization header. An empty allow-list disables the check
// entirely; that posture is announced once at startup so it is never a silent
// hole.
func CredentialValidator(allowed []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if len(allowed) == 0 {
		logger.Warn("credential allow-list is empty, credential validation disabled")
		return func(next http.Handler) http.Handler { return next }
	}

	allowSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowSet[key] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r)
			if credential == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing_credential")
				return
			}
			if _, ok := allowSet[credential]; !ok {
				logger.Warn("credential rejected", slog.String("request_id", requestID(r)))
				httpx.WriteError(w, http.StatusForbidden, "invalid_credential")
				return
			}

			if rc := httpx.GetRequestContext(r.Context()); rc != nil {
				rc.Credential = credential
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractCredential(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(httpx.HeaderAPIKey)); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
