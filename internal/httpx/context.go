// Package httpx holds the request-scoped context and response envelope types
// shared by the gateway middleware and proxies.
package httpx

import "context"

// Header names consumed and produced by the gateway.
const (
	HeaderRequestID         = "X-Request-ID"
	HeaderTenantID          = "X-Tenant-ID"
	HeaderAPIKey            = "X-API-Key"
	HeaderTraceparent       = "traceparent"
	HeaderTracestate        = "tracestate"
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderIdempotencyKeyAlt = "X-Idempotency-Key"
	HeaderCacheHit          = "X-Idempotency-Cache"
	HeaderOriginalRequestID = "X-Original-Request-ID"
)

// RequestContext carries the identity and trace state resolved for one
// inbound request. The stamper allocates it; the tenant guard and credential
// validator fill in their fields before any route logic runs. Handlers treat
// it as read-only.
type RequestContext struct {
	RequestID   string
	Traceparent string
	Tracestate  string
	TenantID    string
	Credential  string
}

type requestContextKey struct{}

// WithRequestContext attaches rc to ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves the request context.
// Returns nil if the stamper has not run.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}
