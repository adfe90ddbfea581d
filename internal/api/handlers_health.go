package api

import (
	"net/http"

	"github.com/recallmesh/recallmesh/internal/memory"
	"github.com/recallmesh/recallmesh/internal/store"
)

type HealthHandler struct {
	db      *store.DB
	svc     *memory.Service
	vectors memory.VectorChecker
}

func NewHealthHandler(db *store.DB, svc *memory.Service, vectors memory.VectorChecker) *HealthHandler {
	return &HealthHandler{db: db, svc: svc, vectors: vectors}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := h.svc.Health(r.Context(), h.db, h.vectors)
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
