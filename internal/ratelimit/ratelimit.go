// Package ratelimit enforces per-tenant, per-resource fixed-window quotas
// backed by a shared counter store.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// CounterStore is a shared counter with automatic expiry. Incr atomically
// increments the counter at key; the first increment of a window arms its
// expiry. The returned ttl is the remaining window time.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Limit is a fixed-window quota for one resource.
type Limit struct {
	Limit  int
	Window time.Duration
}

type Limiter struct {
	store  CounterStore
	logger *slog.Logger
}

func New(store CounterStore, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

type overLimitBody struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

// Middleware guards one resource with the given quota. Counters are keyed by
// tenant and resource; requests with no bound tenant share the anonymous
// bucket. A counter store failure fails open: the error is logged and the
// request proceeds unthrottled.
func (l *Limiter) Middleware(resource string, limit Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := "anonymous"
			if rc := httpx.GetRequestContext(r.Context()); rc != nil && rc.TenantID != "" {
				tenant = rc.TenantID
			}
			key := fmt.Sprintf("rl:%s:%s", tenant, resource)

			count, ttl, err := l.store.Incr(r.Context(), key, limit.Window)
			if err != nil {
				l.logger.Error("counter store unavailable, failing open",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limit.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if ttl > 0 {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			}

			if count > int64(limit.Limit) {
				retryAfter := int(math.Ceil(ttl.Seconds()))
				if retryAfter <= 0 {
					retryAfter = int(limit.Window.Seconds())
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				httpx.WriteJSON(w, http.StatusTooManyRequests, overLimitBody{
					Error:             "rate_limit_exceeded",
					RetryAfterSeconds: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
