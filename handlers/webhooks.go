package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/stack"
	"github.com/sasta-kro/labuh-go/store"
)

// WebhookHandler exposes the unauthenticated webhook redeploy trigger.
// The caller proves authorization by supplying the stack's webhook token
// as a path segment, not via the X-User-Id/X-Team-Id headers the rest of
// the API relies on.
type WebhookHandler struct {
	engine *stack.Engine
	store  *store.Store
	logger *slog.Logger
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(engine *stack.Engine, s *store.Store, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{engine: engine, store: s, logger: logger}
}

type webhookDeployRequest struct {
	Commit string `json:"commit,omitempty"`
}

// Deploy handles POST /api/webhooks/{stackID}/{token}. The body is
// optional; a "commit" field, when present, is recorded against the
// stack so the UI can show which revision is currently deployed.
func (h *WebhookHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "stackID")
	token := chi.URLParam(r, "token")

	s, err := h.engine.ValidateWebhookToken(stackID, token)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}

	var req webhookDeployRequest
	_ = decodeJSON(r, &req) // body is optional; ignore decode errors on an empty body

	if req.Commit != "" {
		if err := h.store.UpdateStackLastCommit(s.ID, req.Commit); err != nil {
			h.logger.Warn("webhook: record last commit failed, continuing", "stack_id", s.ID, "error", err)
		}
	}

	if err := h.engine.RedeployStack(r.Context(), s.ID, s.UserID, models.TriggerWebhook); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusAccepted, map[string]string{"status": "redeploying"})
}
