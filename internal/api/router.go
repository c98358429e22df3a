package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/purplemerit/leadmesh/internal/embedding"
	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/orchestrator"
	"github.com/purplemerit/leadmesh/internal/resource"
	"github.com/purplemerit/leadmesh/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	short *store.ShortTermStore,
	profiles *store.ProfileStore,
	episodes *store.EpisodeStore,
	svc *memory.Service,
	consolidator *memory.Consolidator,
	orch *orchestrator.Orchestrator,
	res *resource.Manager,
	embedder *embedding.Client,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(db, short, profiles, episodes, embedder)
	memoryH := NewMemoryHandler(svc, consolidator)
	orchH := NewOrchestratorHandler(orch)
	resourceH := NewResourceHandler(res)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Route("/memory", func(r chi.Router) {
			r.Post("/context", memoryH.PutContext)
			r.Get("/context/{conversationId}", memoryH.GetContext)
			r.Post("/profiles", memoryH.UpdateProfile)
			r.Get("/profiles/{leadId}", memoryH.GetProfile)
			r.Post("/episodes", memoryH.AppendEpisode)
			r.Post("/episodes/query", memoryH.QueryEpisodes)
			r.Post("/graph", memoryH.UpsertTriple)
			r.Get("/graph", memoryH.QueryTriples)
			r.Post("/consolidate", memoryH.Consolidate)
			r.Get("/actions", memoryH.Actions)
		})

		r.Route("/orchestrator", func(r chi.Router) {
			r.Post("/route", orchH.Route)
			r.Post("/handoff", orchH.Handoff)
			r.Get("/roles", orchH.Roles)
			r.Get("/conversations/{conversationId}/state", orchH.ConversationState)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Post("/access", resourceH.Access)
			r.Get("/access-log", resourceH.AccessLog)
		})
	})

	return r
}
