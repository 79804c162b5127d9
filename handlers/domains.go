package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sasta-kro/labuh-go/models"
	"github.com/sasta-kro/labuh-go/provisioner"
)

// DomainHandler exposes the domain/DNS provisioner over HTTP.
type DomainHandler struct {
	provisioner *provisioner.Provisioner
	logger      *slog.Logger
}

// NewDomainHandler constructs a DomainHandler.
func NewDomainHandler(p *provisioner.Provisioner, logger *slog.Logger) *DomainHandler {
	return &DomainHandler{provisioner: p, logger: logger}
}

type addDomainRequest struct {
	StackID       string `json:"stack_id"`
	ContainerName string `json:"container_name"`
	ContainerPort int    `json:"container_port"`
	Domain        string `json:"domain"`
	Provider      string `json:"provider"`
	Type          string `json:"type"`
	TunnelID      string `json:"tunnel_id,omitempty"`
	ShowBranding  bool   `json:"show_branding"`
}

// AddDomain handles POST /api/domains, running the three-step
// DNS-record/row/proxy-route saga.
func (h *DomainHandler) AddDomain(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing team identity", h.logger)
		return
	}

	var req addDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Domain == "" || req.StackID == "" {
		writeErrorJsonAndLogIt(w, http.StatusBadRequest, "stack_id and domain are required", h.logger)
		return
	}

	domainType := models.DomainCaddy
	if req.Type == string(models.DomainTunnel) {
		domainType = models.DomainTunnel
	}
	provider := models.ProviderCustom
	switch req.Provider {
	case string(models.ProviderCloudflare):
		provider = models.ProviderCloudflare
	case string(models.ProviderCPanel):
		provider = models.ProviderCPanel
	}

	d, err := h.provisioner.AddDomain(r.Context(), teamID, provisioner.AddDomainRequest{
		StackID:       req.StackID,
		ContainerName: req.ContainerName,
		ContainerPort: req.ContainerPort,
		Domain:        req.Domain,
		Provider:      provider,
		Type:          domainType,
		TunnelID:      req.TunnelID,
		ShowBranding:  req.ShowBranding,
	})
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusCreated, d)
}

// RemoveDomain handles DELETE /api/domains/{domain}.
func (h *DomainHandler) RemoveDomain(w http.ResponseWriter, r *http.Request) {
	teamID, ok := teamIDFromRequest(r)
	if !ok {
		writeErrorJsonAndLogIt(w, http.StatusUnauthorized, "missing team identity", h.logger)
		return
	}
	domain := chi.URLParam(r, "domain")
	if err := h.provisioner.RemoveDomain(r.Context(), teamID, domain); err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyDomain handles POST /api/domains/{domain}/verify.
func (h *DomainHandler) VerifyDomain(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	result, err := h.provisioner.VerifyDomain(r.Context(), domain)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, result)
}

// ListDomainsByStack handles GET /api/stacks/{id}/domains.
func (h *DomainHandler) ListDomainsByStack(w http.ResponseWriter, r *http.Request) {
	stackID := chi.URLParam(r, "id")
	domains, err := h.provisioner.ListDomainsByStack(stackID)
	if err != nil {
		writeAppError(w, err, h.logger)
		return
	}
	writeJsonAndRespond(w, http.StatusOK, domains)
}
