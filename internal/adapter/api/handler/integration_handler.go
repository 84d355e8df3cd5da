package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// IntegrationHandler serves the onboarding links.
type IntegrationHandler struct {
	integration *usecase.IntegrationService
	logger      *slog.Logger
}

// NewIntegrationHandler creates a new IntegrationHandler.
func NewIntegrationHandler(integration *usecase.IntegrationService, logger *slog.Logger) *IntegrationHandler {
	return &IntegrationHandler{integration: integration, logger: logger}
}

// Links handles POST /api/integrate?user_id=.
func (h *IntegrationHandler) Links(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgName string `json:"org_name"`
		APIKey  string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	links, err := h.integration.Links(r.Context(), body.OrgName, r.URL.Query().Get("user_id"), body.APIKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}
