package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/stack"
	"github.com/sasta-kro/labuh-go/store"
	"github.com/sasta-kro/labuh-go/util"
)

// StackHandler exposes the stack lifecycle engine over HTTP.
type StackHandler struct {
	engine *stack.Engine
	store  *store.Store
	logger *slog.Logger
}

// NewStackHandler constructs a StackHandler.
func NewStackHandler(engine *stack.Engine, s *store.Store, logger *slog.Logger) *StackHandler {
	return &StackHandler{engine: engine, store: s, logger: logger}
}

type createStackRequest struct {
	Name           string `json:"name"`
	ComposeContent string `json:"compose_content"`
}

// CreateStack handles POST /api/stacks.
func (h *StackHandler) CreateStack(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	teamID, _ := teamIDFromRequest(r)

	var req createStackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Name == "" {
		req.Name = util.GenerateSlug()
	}

	s, err := h.engine.CreateStack(r.Context(), userID, teamID, req.Name, req.ComposeContent)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusCreated, s)
}

// ListStacks handles GET /api/stacks, scoped to the caller's team.
func (h *StackHandler) ListStacks(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing team identity", h.logger)
		return
	}
	stacks, err := h.store.ListStacksByTeam(teamID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, stacks)
}

// GetStack handles GET /api/stacks/{id}.
func (h *StackHandler) GetStack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.store.GetStack(id)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, s)
}

// StartStack handles POST /api/stacks/{id}/start.
func (h *StackHandler) StartStack(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.StartStack(r.Context(), id, userID); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "started"})
}

// StopStack handles POST /api/stacks/{id}/stop.
func (h *StackHandler) StopStack(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.StopStack(r.Context(), id, userID); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// RedeployStack handles POST /api/stacks/{id}/redeploy, optionally scoped
// to a single service via the ?service= query parameter.
func (h *StackHandler) RedeployStack(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")

	if service := r.URL.Query().Get("service"); service != "" {
		if err := h.engine.RedeployService(r.Context(), id, userID, service); err != nil {
			writeAppError(w, err, h.logger)
			return
		}
		writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "redeployed", "service": service})
		return
	}

	if err := h.engine.RedeployStack(r.Context(), id, userID, models.TriggerManual); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "redeployed"})
}

// RemoveStack handles DELETE /api/stacks/{id}.
func (h *StackHandler) RemoveStack(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.engine.RemoveStack(r.Context(), id, userID); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStackHealth handles GET /api/stacks/{id}/health.
func (h *StackHandler) GetStackHealth(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")
	health, err := h.engine.GetStackHealth(r.Context(), id, userID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, health)
}

// GetStackLogs handles GET /api/stacks/{id}/logs?tail=200.
func (h *StackHandler) GetStackLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")

	tail := 200
	if raw := r.URL.Query().Get("tail"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			tail = n
		}
	}

	logs, err := h.engine.GetStackLogs(r.Context(), id, userID, tail)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, logs)
}

type updateComposeRequest struct {
	ComposeContent string `json:"compose_content"`
}

// UpdateStackCompose handles PUT /api/stacks/{id}/compose.
func (h *StackHandler) UpdateStackCompose(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")

	var req updateComposeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	if err := h.engine.UpdateStackCompose(r.Context(), id, userID, req.ComposeContent); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RegenerateWebhookToken handles POST /api/stacks/{id}/webhook-token.
func (h *StackHandler) RegenerateWebhookToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing user identity", h.logger)
		return
	}
	id := chi.URLParam(r, "id")

	token, err := h.engine.RegenerateWebhookToken(r.Context(), id, userID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"webhook_token": token})
}

// SetEnvVar handles PUT /api/stacks/{id}/env. An empty container_name
// applies globally to the stack, per the compose env-merge rule.
type setEnvVarRequest struct {
	ContainerName string `json:"container_name"`
	Key           string `json:"key"`
	Value         string `json:"value"`
	IsSecret      bool   `json:"is_secret"`
}

func (h *StackHandler) SetEnvVar(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "id")

	var req setEnvVarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Key == "" {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "key is required", h.logger)
		return
	}

	v := &models.StackEnvVar{
		ID:            newEnvVarID(stackID, req.ContainerName, req.Key),
		StackID:       stackID,
		ContainerName: req.ContainerName,
		Key:           req.Key,
		Value:         req.Value,
		IsSecret:      req.IsSecret,
	}
	if err := h.store.SetEnvVar(v); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "set"})
}

// ListEnvVars handles GET /api/stacks/{id}/env. Secret values are masked
// in the response; the store keeps them in plaintext at rest.
func (h *StackHandler) ListEnvVars(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "id")
	vars, err := h.store.ListEnvVarsByStack(stackID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	for _, v := range vars {
		if v.IsSecret {
			v.Value = "***"
		}
	}
	writeJsonAndRespond(w, http.StatusOK, vars)
}

// ListDeploymentLogs handles GET /api/stacks/{id}/deployments.
func (h *StackHandler) ListDeploymentLogs(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "id")
	logs, err := h.store.ListDeploymentLogsByStack(stackID, 50)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, logs)
}

// ListMetrics handles GET /api/stacks/{id}/metrics?since=1h.
func (h *StackHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "id")

	since := time.Now().Add(-1 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			since = time.Now().Add(-d)
		}
	}

	metrics, err := h.store.ListResourceMetricsByStack(stackID, since)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, metrics)
}

// newEnvVarID derives a stable id for a (stack, container, key) tuple so
// repeated SetEnvVar calls for the same key update in place rather than
// accumulating duplicate rows.
func newEnvVarID(stackID, containerName, key string) string {
	return stackID + ":" + containerName + ":" + key
}
