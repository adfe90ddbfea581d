package api

import (
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/recallmesh/recallmesh/internal/memory"
	"github.com/recallmesh/recallmesh/internal/store"
)

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(
	db *store.DB,
	svc *memory.Service,
	vectors memory.VectorChecker,
	apiKey string,
	logger *log.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on all routes including /health)
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(db, svc, vectors)
	memoryH := NewMemoryHandler(svc)

	// Unauthenticated routes
	r.Get("/health", healthH.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/search", memoryH.Search)
		r.Post("/ingest", memoryH.Ingest)
		r.Post("/cleanup", memoryH.Cleanup)
		r.Get("/policies", memoryH.Policies)

		r.Route("/memories", func(r chi.Router) {
			r.Get("/{id}", memoryH.Get)
			r.Delete("/{id}", memoryH.Delete)
			r.Post("/{id}/link", memoryH.Link)
		})

		r.Get("/jobs/{id}", memoryH.GetJob)
	})

	return r
}
