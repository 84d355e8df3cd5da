package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain/mocks"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/usecase"
)

func newCredentialsHandler(t *testing.T, validated bool) *CredentialsHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orgs := mocks.NewMockOrgRepository()
	if _, err := orgs.CreateOrg(context.Background(), "acme", "u1", "acme-api-key", "acme-external-id"); err != nil {
		t.Fatalf("fixture org: %v", err)
	}
	if validated {
		accountID := "123456789012"
		if err := orgs.MarkValidated(context.Background(), "acme", domain.ValidationUpdate{AccountID: &accountID}); err != nil {
			t.Fatalf("fixture validate: %v", err)
		}
	}

	assumer := &mocks.MockRoleAssumer{Creds: &domain.TemporaryCredentials{
		AccessKeyID:     "ASIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Expiration:      time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	}}
	resolver := &mocks.MockIdentityResolver{Identity: &domain.CallerIdentity{
		AccountID: "123456789012",
		ARN:       "arn:aws:sts::123456789012:assumed-role/SunrinPowerUser/Sunrin-acme-u1",
	}}
	broker := usecase.NewBrokerService(
		orgs, mocks.NewMockUserRepository("u1"), &mocks.MockRateLimiter{}, assumer, resolver, nil, nil,
		map[string]string{"readonly": "SunrinPowerUser"},
		"Sunrin-{org_name}-{user_id}", time.Hour, logger,
	)
	integration := usecase.NewIntegrationService(orgs, nil, "templates-bucket", "stack.yaml", "us-east-1", true, logger)
	return NewCredentialsHandler(broker, integration, logger)
}

func issueRequestBody() *bytes.Buffer {
	body, _ := json.Marshal(map[string]string{
		"org_name":          "acme",
		"role_type":         "readonly",
		"target_account_id": "123456789012",
		"api_key":           "acme-api-key",
	})
	return bytes.NewBuffer(body)
}

func TestCredentialsHandler_Issue(t *testing.T) {
	t.Run("Issues Credentials", func(t *testing.T) {
		h := newCredentialsHandler(t, true)

		req := httptest.NewRequest(http.MethodPost, "/api/credentials?user_id=u1", issueRequestBody())
		rr := httptest.NewRecorder()
		h.Issue(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var creds domain.TemporaryCredentials
		if err := json.Unmarshal(rr.Body.Bytes(), &creds); err != nil {
			t.Fatalf("response not valid JSON: %v", err)
		}
		if creds.AccessKeyID == "" || creds.SessionToken == "" {
			t.Errorf("credential fields missing: %+v", creds)
		}
	})

	t.Run("Not Validated Carries Remediation Links", func(t *testing.T) {
		h := newCredentialsHandler(t, false)

		req := httptest.NewRequest(http.MethodPost, "/api/credentials?user_id=u1", issueRequestBody())
		rr := httptest.NewRecorder()
		h.Issue(rr, req)

		if rr.Code != http.StatusPreconditionFailed {
			t.Fatalf("expected 412, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Error string                   `json:"error"`
			Links usecase.IntegrationLinks `json:"links"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response not valid JSON: %v", err)
		}
		if resp.Links.TemplateURL == "" || resp.Links.QuickCreateURL == "" || resp.Links.CLICommand == "" {
			t.Errorf("remediation links missing: %+v", resp.Links)
		}
	})

	t.Run("Wrong Key Is Unauthorized", func(t *testing.T) {
		h := newCredentialsHandler(t, true)

		body, _ := json.Marshal(map[string]string{
			"org_name":          "acme",
			"role_type":         "readonly",
			"target_account_id": "123456789012",
			"api_key":           "wrong",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/credentials?user_id=u1", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		h.Issue(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		h := newCredentialsHandler(t, true)

		req := httptest.NewRequest(http.MethodPost, "/api/credentials?user_id=u1", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		h.Issue(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

func validateRequestBody() *bytes.Buffer {
	body, _ := json.Marshal(map[string]string{
		"org_name":          "acme",
		"api_key":           "acme-api-key",
		"access_key_id":     "ASIAEXAMPLE",
		"secret_access_key": "secret",
		"session_token":     "token",
	})
	return bytes.NewBuffer(body)
}

func TestCredentialsHandler_Validate(t *testing.T) {
	t.Run("Reports Identity", func(t *testing.T) {
		h := newCredentialsHandler(t, true)

		req := httptest.NewRequest(http.MethodPost, "/api/credentials/validate?user_id=u1", validateRequestBody())
		rr := httptest.NewRecorder()
		h.Validate(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Valid       bool   `json:"valid"`
			IdentityARN string `json:"identity_arn"`
			AccountID   string `json:"account_id"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response not valid JSON: %v", err)
		}
		if !resp.Valid || resp.IdentityARN == "" || resp.AccountID != "123456789012" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("Wrong Key Is Unauthorized", func(t *testing.T) {
		h := newCredentialsHandler(t, true)

		body, _ := json.Marshal(map[string]string{
			"org_name":          "acme",
			"api_key":           "wrong",
			"access_key_id":     "ASIAEXAMPLE",
			"secret_access_key": "secret",
			"session_token":     "token",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/credentials/validate?user_id=u1", bytes.NewBuffer(body))
		rr := httptest.NewRecorder()
		h.Validate(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("Not Validated Carries Remediation Links", func(t *testing.T) {
		h := newCredentialsHandler(t, false)

		req := httptest.NewRequest(http.MethodPost, "/api/credentials/validate?user_id=u1", validateRequestBody())
		rr := httptest.NewRecorder()
		h.Validate(rr, req)

		if rr.Code != http.StatusPreconditionFailed {
			t.Fatalf("expected 412, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Links usecase.IntegrationLinks `json:"links"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("response not valid JSON: %v", err)
		}
		if resp.Links.TemplateURL == "" {
			t.Errorf("remediation links missing: %+v", resp.Links)
		}
	})
}
