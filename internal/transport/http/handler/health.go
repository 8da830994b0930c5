package handler

import (
	"net/http"

	"github.com/gigmarket-api/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	rs *respond.Responder
}

func NewHealthHandler(rs *respond.Responder) *HealthHandler { return &HealthHandler{rs: rs} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") == "ping" {
		h.rs.JSON(w, http.StatusOK, nil, "pong")
		return
	}
	h.rs.Fail(w, r, http.StatusBadRequest, "unknown action")
}
