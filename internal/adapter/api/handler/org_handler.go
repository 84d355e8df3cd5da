package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// IdempotencyKeyHeader carries the caller-supplied registration token.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrgHandler handles organization registration.
type OrgHandler struct {
	registration *usecase.RegistrationService
	logger       *slog.Logger
}

// NewOrgHandler creates a new OrgHandler.
func NewOrgHandler(registration *usecase.RegistrationService, logger *slog.Logger) *OrgHandler {
	return &OrgHandler{registration: registration, logger: logger}
}

// Register handles POST /api/orgs?user_id=. The Idempotency-Key header is
// required. The response carries the plaintext API key and external id;
// neither is retrievable again through any endpoint.
func (h *OrgHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgName string `json:"org_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := h.registration.Register(
		r.Context(),
		body.OrgName,
		r.URL.Query().Get("user_id"),
		r.Header.Get(IdempotencyKeyHeader),
	)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"org_name":    result.Org.Name,
		"api_key":     result.APIKey,
		"external_id": result.ExternalID,
	})
}
