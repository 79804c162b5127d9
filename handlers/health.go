// Package handlers contains all HTTP handler functions for the labuh
// control plane API. each handler file groups related endpoints by
// resource. handlers decode a request, call into a usecase package, and
// write a JSON response; no business logic lives here.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sasta-kro/labuh-go/store"
)

// HealthHandler holds the dependencies needed by the health/ready endpoints.
type HealthHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(s *store.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: s, logger: logger}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health handles GET /health: the minimum signal that the process is
// alive and the HTTP stack works. No db check, no auth.
func (handler *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJsonAndRespond(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready: confirms the store is reachable, for use by
// orchestrators that distinguish "process up" from "can serve traffic".
func (handler *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := handler.store.Ping(); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusServiceUnavailable, "store unreachable", handler.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, healthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
