package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/store"
)

// TeamHandler exposes team-scoped administrative resources: registry
// credentials and DNS provider configuration. Both require at least
// Admin role on the team, checked via the RBAC collaborator.
type TeamHandler struct {
	store  *store.Store
	rbac   RBAC
	logger *slog.Logger
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(s *store.Store, rbac RBAC, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{store: s, rbac: rbac, logger: logger}
}

type addRegistryCredentialRequest struct {
	Registry string `json:"registry"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// AddRegistryCredential handles POST /api/teams/{teamID}/registry-credentials.
// The password is stored base64-encoded — see the registry-credential
// open-question resolution in DESIGN.md.
func (h *TeamHandler) AddRegistryCredential(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID, ok := userIDFromRequest(r)
	if !ok || !requireRole(h.rbac, teamID, userID, models.RoleAdmin) {
		writeErrorJsonAndLogIt(w, http.StatusForbidden, "admin role required", h.logger)
		return
	}

	var req addRegistryCredentialRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Registry == "" {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "registry is required", h.logger)
		return
	}

	cred := &models.RegistryCredential{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		Registry: req.Registry,
		Username: req.Username,
		Password: base64.StdEncoding.EncodeToString([]byte(req.Password)),
	}
	if err := h.store.CreateRegistryCredential(cred); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusCreated, cred)
}

// ListRegistryCredentials handles GET /api/teams/{teamID}/registry-credentials.
func (h *TeamHandler) ListRegistryCredentials(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID, ok := userIDFromRequest(r)
	if !ok || !requireRole(h.rbac, teamID, userID, models.RoleDeveloper) {
		writeErrorJsonAndLogIt(w, http.StatusForbidden, "developer role required", h.logger)
		return
	}

	creds, err := h.store.ListRegistryCredentialsByTeam(teamID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, creds)
}

// DeleteRegistryCredential handles DELETE /api/teams/{teamID}/registry-credentials/{id}.
func (h *TeamHandler) DeleteRegistryCredential(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID, ok := userIDFromRequest(r)
	if !ok || !requireRole(h.rbac, teamID, userID, models.RoleAdmin) {
		writeErrorJsonAndLogIt(w, http.StatusForbidden, "admin role required", h.logger)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteRegistryCredential(id); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertDnsConfigRequest struct {
	Provider string `json:"provider"`
	Config   string `json:"config"`
}

// UpsertDnsConfig handles PUT /api/teams/{teamID}/dns-config.
func (h *TeamHandler) UpsertDnsConfig(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	userID, ok := userIDFromRequest(r)
	if !ok || !requireRole(h.rbac, teamID, userID, models.RoleAdmin) {
		writeErrorJsonAndLogIt(w, http.StatusForbidden, "admin role required", h.logger)
		return
	}

	var req upsertDnsConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	cfg := &models.DnsConfig{
		ID:       uuid.NewString(),
		TeamID:   teamID,
		Provider: models.DomainProvider(req.Provider),
		Config:   req.Config,
	}
	if err := h.store.UpsertDnsConfig(cfg); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, map[string]string{"status": "saved"})
}
