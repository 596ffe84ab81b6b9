// Package idempotency detects and replays duplicate mutating requests using
// a durable key-to-response store.
package idempotency

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// Record is one cached response, uniquely keyed by (tenant, resource, key).
type Record struct {
	TenantID        string
	Resource        string
	Key             string
	StatusCode      int
	Body            []byte
	OriginRequestID string
}

// RecordStore persists idempotency records. Put overwrites an existing
// (tenant, resource, key) row rather than duplicating it.
type RecordStore interface {
	Get(ctx context.Context, tenant, resource, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
}

type Coordinator struct {
	store    RecordStore
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// New builds a coordinator. A nil store disables caching: wrapped handlers
// run on every request.
func New(store RecordStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, logger: logger}
}

// Wrap decorates an envelope-returning handler with idempotent replay for the
// named resource. A request qualifies when it carries an idempotency key
// header and a bound tenant; anything else passes straight through.
//
// On a cache hit the stored status and body are replayed verbatim and the
// handler is not invoked. On a miss the handler runs and, when its status is
// below 500, the record is upserted by a supervised background task whose
// failure is logged, never surfaced.
//
// There is no cross-request lock between lookup and persist: two concurrent
// first-time calls with the same key may both execute the handler. The store's
// upsert keeps a single record either way.
func (c *Coordinator) Wrap(resource string, h httpx.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := httpx.GetRequestContext(r.Context())
		key := idempotencyKey(r)

		tenant := ""
		if rc != nil {
			tenant = rc.TenantID
		}
		if c.store == nil || key == "" || tenant == "" {
			c.execute(w, r, h)
			return
		}

		cached, err := c.store.Get(r.Context(), tenant, resource, key)
		if err != nil {
			c.logger.Error("idempotency lookup failed, executing handler",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			cached = nil
		}
		if cached != nil {
			hdr := w.Header()
			hdr.Set(httpx.HeaderIdempotencyKey, key)
			hdr.Set(httpx.HeaderCacheHit, "hit")
			if cached.OriginRequestID != "" {
				hdr.Set(httpx.HeaderOriginalRequestID, cached.OriginRequestID)
			}
			httpx.WriteResponse(w, &httpx.Response{Status: cached.StatusCode, Body: cached.Body})
			return
		}

		w.Header().Set(httpx.HeaderIdempotencyKey, key)
		resp := c.execute(w, r, h)
		if resp == nil || resp.Status >= http.StatusInternalServerError {
			return
		}

		rec := &Record{
			TenantID:        tenant,
			Resource:        resource,
			Key:             key,
			StatusCode:      resp.Status,
			Body:            resp.Body,
			OriginRequestID: rc.RequestID,
		}
		c.inflight.Add(1)
		go func() {
			defer c.inflight.Done()
			if err := c.store.Put(context.Background(), rec); err != nil {
				c.logger.Error("idempotency persist failed",
					slog.String("resource", resource),
					slog.String("tenant_id", tenant),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
}

// Wait blocks until all background persists have finished. Called during
// shutdown so records are not lost with the process.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

func (c *Coordinator) execute(w http.ResponseWriter, r *http.Request, h httpx.HandlerFunc) *httpx.Response {
	resp, err := h(r)
	if err != nil {
		c.logger.Error("handler failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return nil
	}
	httpx.WriteResponse(w, resp)
	return resp
}

func idempotencyKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(httpx.HeaderIdempotencyKey)); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get(httpx.HeaderIdempotencyKeyAlt))
}
