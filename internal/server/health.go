package server

import (
	"net/http"
	"time"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
	"github.com/prisma-glow/edge-gateway/internal/trace"
)

type healthBody struct {
	Status       string `json:"status"`
	RequestID    string `json:"requestId"`
	TraceID      string `json:"traceId"`
	Timestamp    string `json:"timestamp"`
	CounterStore string `json:"counterStore"`
	DurableStore string `json:"durableStore"`
}

// HealthHandler reports liveness and whether the optional backing stores are
// configured. Unauthenticated: it sits outside the tenant-guarded group.
func HealthHandler(counterStore, durableStore bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{
			Status:       "ok",
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			CounterStore: storeStatus(counterStore),
			DurableStore: storeStatus(durableStore),
		}
		if rc := httpx.GetRequestContext(r.Context()); rc != nil {
			body.RequestID = rc.RequestID
			body.TraceID = trace.TraceID(rc.Traceparent)
		}
		httpx.WriteJSON(w, http.StatusOK, body)
	}
}

func storeStatus(enabled bool) string {
	if enabled {
		return "ok"
	}
	return "disabled"
}
