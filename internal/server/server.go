package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/prisma-glow/edge-gateway/internal/idempotency"
	"github.com/prisma-glow/edge-gateway/internal/proxy"
	"github.com/prisma-glow/edge-gateway/internal/ratelimit"
)

// Deps carries the components the composition wires into the pipeline. Store
// clients are constructed and owned by the caller; the server only uses them.
type Deps struct {
	Logger             *slog.Logger
	AllowedCredentials []string
	Limiter            *ratelimit.Limiter
	Idempotency        *idempotency.Coordinator
	Agent              *proxy.AgentProxy
	Rag                *proxy.RagProxy

	AgentChatLimit ratelimit.Limit
	RagIngestLimit ratelimit.Limit
	RagSearchLimit ratelimit.Limit

	// Health reporting for the optional backing stores.
	CounterStoreEnabled bool
	DurableStoreEnabled bool
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// New assembles the fixed middleware pipeline: recover -> otel -> stamper ->
// logging, a public health route, then the tenant-guarded /v1 group with
// per-route rate limiting and idempotent replay on the mutating routes.
func New(port int, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(RecoverMiddleware(deps.Logger))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "edge-gateway")
	})
	r.Use(StamperMiddleware)
	r.Use(LoggingMiddleware(deps.Logger))

	r.NotFound(NotFoundHandler)

	r.Get("/health", HealthHandler(deps.CounterStoreEnabled, deps.DurableStoreEnabled))

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(TenantGuard(deps.Logger))
		v1.Use(CredentialValidator(deps.AllowedCredentials, deps.Logger))

		v1.With(deps.Limiter.Middleware("agent_chat", deps.AgentChatLimit)).
			Get("/agent/chat", deps.Agent.Chat)

		v1.With(deps.Limiter.Middleware("rag_ingest", deps.RagIngestLimit)).
			Post("/rag/ingest", deps.Idempotency.Wrap("rag_ingest", deps.Rag.Ingest))

		v1.With(deps.Limiter.Middleware("rag_search", deps.RagSearchLimit)).
			Post("/rag/search", deps.Idempotency.Wrap("rag_search", deps.Rag.Search))
	})

	return &Server{Router: r, Port: port, logger: deps.Logger}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
