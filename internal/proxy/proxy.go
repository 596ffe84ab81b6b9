// Package proxy relays gateway traffic to the agent and retrieval upstreams.
package proxy

import (
	"net/http"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// Version is stamped into the outbound User-Agent.
var Version = "dev"

// setForwardHeaders copies the resolved identity and trace context onto an
// outbound request, plus the service credential when configured.
func setForwardHeaders(out *http.Request, rc *httpx.RequestContext, apiKey string) {
	if rc != nil {
		if rc.TenantID != "" {
			out.Header.Set(httpx.HeaderTenantID, rc.TenantID)
		}
		out.Header.Set(httpx.HeaderRequestID, rc.RequestID)
		out.Header.Set(httpx.HeaderTraceparent, rc.Traceparent)
		if rc.Tracestate != "" {
			out.Header.Set(httpx.HeaderTracestate, rc.Tracestate)
		}
	}
	out.Header.Set("User-Agent", "edge-gateway/"+Version)
	if apiKey != "" {
		out.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
