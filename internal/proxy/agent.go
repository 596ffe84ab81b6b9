package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

// AgentProxy relays the long-lived agent chat event stream. Each request owns
// a cancellation signal tied to the client connection and a heartbeat timer;
// both are released on every exit path.
type AgentProxy struct {
	baseURL   string
	apiKey    string
	heartbeat time.Duration
	client    *http.Client
	logger    *slog.Logger
}

func NewAgentProxy(baseURL, apiKey string, heartbeat time.Duration, logger *slog.Logger) *AgentProxy {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &AgentProxy{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		heartbeat: heartbeat,
		// No overall timeout: streams are long-lived and cancelled via context.
		client: &http.Client{},
		logger: logger,
	}
}

// Chat proxies GET /v1/agent/chat. The upstream call is issued first so an
// unreachable or failing upstream still gets a proper 502/503 status line;
// once the stream is committed, chunks are copied verbatim with a flush per
// read and a comment heartbeat keeps idle connections alive. Client
// disconnect cancels the upstream reader.
func (p *AgentProxy) Chat(w http.ResponseWriter, r *http.Request) {
	if p.baseURL == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "upstream_unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	// r.Context() is cancelled by the server when the client goes away;
	// the explicit cancel also covers our own error exits.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	upstreamURL := p.baseURL + "/agent/chat"
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "upstream_error")
		return
	}
	setForwardHeaders(req, httpx.GetRequestContext(r.Context()), p.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("agent upstream call failed", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadGateway, "upstream_error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Error("agent upstream returned error", slog.Int("status", resp.StatusCode))
		httpx.WriteError(w, http.StatusBadGateway, "upstream_error")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// One mutex serializes heartbeat and chunk writes; the closed flag keeps
	// the heartbeat from touching the writer once the handler is done.
	var mu sync.Mutex
	closed := false
	ticker := time.NewTicker(p.heartbeat)
	done := make(chan struct{})
	defer func() {
		ticker.Stop()
		mu.Lock()
		closed = true
		mu.Unlock()
		close(done)
	}()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				if !closed && ctx.Err() == nil {
					if _, err := io.WriteString(w, ": keep-alive\n\n"); err == nil {
						flusher.Flush()
					}
				}
				mu.Unlock()
			}
		}
	}()

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			mu.Lock()
			_, werr := w.Write(buf[:n])
			if werr == nil {
				flusher.Flush()
			}
			mu.Unlock()
			if werr != nil {
				cancel()
				return
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				p.logger.Error("agent stream read failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}
