package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

// CredentialsHandler handles STS credential issuance.
type CredentialsHandler struct {
	broker      *usecase.BrokerService
	integration *usecase.IntegrationService
	logger      *slog.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(broker *usecase.BrokerService, integration *usecase.IntegrationService, logger *slog.Logger) *CredentialsHandler {
	return &CredentialsHandler{broker: broker, integration: integration, logger: logger}
}

// Issue handles POST /api/credentials?user_id=. A not-validated failure
// carries the onboarding links so the caller can remediate.
func (h *CredentialsHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgName         string `json:"org_name"`
		RoleType        string `json:"role_type"`
		TargetAccountID string `json:"target_account_id"`
		APIKey          string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	userID := r.URL.Query().Get("user_id")

	creds, err := h.broker.IssueCredentials(r.Context(), usecase.IssueRequest{
		OrgName:         body.OrgName,
		CallerUserID:    userID,
		RoleType:        body.RoleType,
		TargetAccountID: body.TargetAccountID,
		APIKey:          body.APIKey,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotValidated) {
			h.writeNotValidated(w, r, body.OrgName, userID, body.APIKey, err)
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// Validate handles POST /api/credentials/validate?user_id=. It verifies
// that a previously issued credential set is still usable and reports the
// principal behind it.
func (h *CredentialsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrgName         string `json:"org_name"`
		APIKey          string `json:"api_key"`
		AccessKeyID     string `json:"access_key_id"`
		SecretAccessKey string `json:"secret_access_key"`
		SessionToken    string `json:"session_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	userID := r.URL.Query().Get("user_id")

	identity, err := h.broker.ValidateCredentials(r.Context(), usecase.ValidateRequest{
		OrgName:      body.OrgName,
		CallerUserID: userID,
		APIKey:       body.APIKey,
		Credentials: domain.TemporaryCredentials{
			AccessKeyID:     body.AccessKeyID,
			SecretAccessKey: body.SecretAccessKey,
			SessionToken:    body.SessionToken,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotValidated) {
			h.writeNotValidated(w, r, body.OrgName, userID, body.APIKey, err)
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        true,
		"identity_arn": identity.ARN,
		"account_id":   identity.AccountID,
	})
}

// writeNotValidated responds 412 with the integration remediation links.
// The caller's API key is re-verified on the links path, so a forged key
// can never reach the external id. Link-building failures degrade to a
// plain 412.
func (h *CredentialsHandler) writeNotValidated(w http.ResponseWriter, r *http.Request, orgName, userID, apiKey string, cause error) {
	links, err := h.integration.Links(r.Context(), orgName, userID, apiKey)
	if err != nil {
		h.logger.Warn("failed to build remediation links", "error", err, "org", orgName)
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: cause.Error()})
		return
	}
	writeJSON(w, http.StatusPreconditionFailed, errorResponse{Error: cause.Error(), Links: links})
}
