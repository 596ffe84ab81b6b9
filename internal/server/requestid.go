package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
	"github.com/prisma-glow/edge-gateway/internal/trace"
)

// StamperMiddleware resolves the request id and trace context for each
// inbound request and publishes them on the response so callers can
// correlate. A client-supplied X-Request-ID is honored when non-empty;
// a malformed or absent traceparent is replaced with a fresh one rather
// than rejected. This middleware never fails a request.
func StamperMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(httpx.HeaderRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		traceparent := strings.TrimSpace(r.Header.Get(httpx.HeaderTraceparent))
		if !trace.IsValidTraceparent(traceparent) {
			traceparent = trace.NewTraceparent()
		}

		rc := &httpx.RequestContext{
			RequestID:   requestID,
			Traceparent: traceparent,
			Tracestate:  strings.TrimSpace(r.Header.Get(httpx.HeaderTracestate)),
		}

		w.Header().Set(httpx.HeaderRequestID, requestID)
		w.Header().Set(httpx.HeaderTraceparent, traceparent)
		if rc.Tracestate != "" {
			w.Header().Set(httpx.HeaderTracestate, rc.Tracestate)
		}

		next.ServeHTTP(w, r.WithContext(httpx.WithRequestContext(r.Context(), rc)))
	})
}
