package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain/mocks"
)

func TestBuildSessionName(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	suffix := "20260314T092653Z"

	t.Run("Short Base Untouched", func(t *testing.T) {
		name := BuildSessionName("Sunrin-{org_name}-{user_id}", "acme", "u1", now)
		if name != "Sunrin-acme-u1-"+suffix {
			t.Errorf("unexpected name %q", name)
		}
	})

	t.Run("Long Base Truncated To Ceiling", func(t *testing.T) {
		org := strings.Repeat("a", 60)
		name := BuildSessionName("Sunrin-{org_name}-{user_id}", org, "u1", now)
		if len(name) != sessionNameMaxLength {
			t.Errorf("expected %d chars, got %d: %q", sessionNameMaxLength, len(name), name)
		}
		if !strings.HasSuffix(name, "-"+suffix) {
			t.Errorf("name %q should end with the timestamp suffix", name)
		}
	})

	t.Run("Base Never Shorter Than One Character", func(t *testing.T) {
		name := BuildSessionName("{org_name}", "x", "u1", now)
		if !strings.HasPrefix(name, "x-") {
			t.Errorf("unexpected name %q", name)
		}
	})
}

type brokerFixture struct {
	orgs     *mocks.MockOrgRepository
	users    *mocks.MockUserRepository
	limiter  *mocks.MockRateLimiter
	assumer  *mocks.MockRoleAssumer
	resolver *mocks.MockIdentityResolver
	audit    *mocks.MockAuditRecorder
	svc      *BrokerService
	apiKey   string
}

// newBrokerFixture registers org "acme" owned by "u1" and returns a
// service wired to mocks. The org starts unvalidated.
func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orgs := mocks.NewMockOrgRepository()
	if _, err := orgs.CreateOrg(context.Background(), "acme", "u1", "acme-api-key", "acme-external-id"); err != nil {
		t.Fatalf("fixture org: %v", err)
	}

	f := &brokerFixture{
		orgs:    orgs,
		users:   mocks.NewMockUserRepository("u1"),
		limiter: &mocks.MockRateLimiter{},
		assumer: &mocks.MockRoleAssumer{Creds: &domain.TemporaryCredentials{
			AccessKeyID:     "ASIAEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
			Expiration:      time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		}},
		resolver: &mocks.MockIdentityResolver{Identity: &domain.CallerIdentity{
			AccountID: "123456789012",
			ARN:       "arn:aws:sts::123456789012:assumed-role/SunrinPowerUser/Sunrin-acme-u1",
			UserID:    "AROAEXAMPLE:Sunrin-acme-u1",
		}},
		audit:  &mocks.MockAuditRecorder{},
		apiKey: "acme-api-key",
	}
	f.svc = NewBrokerService(
		f.orgs, f.users, f.limiter, f.assumer, f.resolver, f.audit, nil,
		map[string]string{"readonly": "SunrinPowerUser"},
		"Sunrin-{org_name}-{user_id}", time.Hour, logger,
	)
	return f
}

func (f *brokerFixture) validate(t *testing.T) {
	t.Helper()
	accountID := "123456789012"
	if err := f.orgs.MarkValidated(context.Background(), "acme", domain.ValidationUpdate{AccountID: &accountID}); err != nil {
		t.Fatalf("fixture validate: %v", err)
	}
}

func validIssueRequest() IssueRequest {
	return IssueRequest{
		OrgName:         "acme",
		CallerUserID:    "u1",
		RoleType:        "readonly",
		TargetAccountID: "123456789012",
		APIKey:          "acme-api-key",
	}
}

func TestBrokerService_IssueCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Not Validated Then Validated", func(t *testing.T) {
		f := newBrokerFixture(t)

		_, err := f.svc.IssueCredentials(ctx, validIssueRequest())
		if !errors.Is(err, domain.ErrNotValidated) {
			t.Fatalf("expected ErrNotValidated, got %v", err)
		}

		f.validate(t)
		creds, err := f.svc.IssueCredentials(ctx, validIssueRequest())
		if err != nil {
			t.Fatalf("expected no error after validation, got %v", err)
		}
		if creds.AccessKeyID == "" || creds.SecretAccessKey == "" || creds.SessionToken == "" {
			t.Errorf("credential fields must be non-empty: %+v", creds)
		}
		expiration, err := time.Parse(time.RFC3339, creds.Expiration)
		if err != nil {
			t.Fatalf("expiration not RFC3339: %v", err)
		}
		if !expiration.After(time.Now()) {
			t.Errorf("expiration %v should be in the future", expiration)
		}
		if len(f.audit.Events) != 1 || f.audit.Events[0].Event != domain.AuditCredentialsIssued {
			t.Errorf("expected one issuance audit event, got %+v", f.audit.Events)
		}
	})

	t.Run("Assume Role Input", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		if _, err := f.svc.IssueCredentials(ctx, validIssueRequest()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.assumer.Inputs) != 1 {
			t.Fatalf("expected one assume-role call, got %d", len(f.assumer.Inputs))
		}
		input := f.assumer.Inputs[0]
		if input.RoleARN != "arn:aws:iam::123456789012:role/SunrinPowerUser" {
			t.Errorf("unexpected role arn %q", input.RoleARN)
		}
		if input.ExternalID != "acme-external-id" {
			t.Errorf("unexpected external id %q", input.ExternalID)
		}
		if len(input.SessionName) > sessionNameMaxLength || !strings.HasPrefix(input.SessionName, "Sunrin-acme-u1-") {
			t.Errorf("unexpected session name %q", input.SessionName)
		}
		if input.Duration != time.Hour {
			t.Errorf("unexpected duration %v", input.Duration)
		}
	})

	t.Run("Wrong API Key", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validIssueRequest()
		req.APIKey = "wrong"
		if _, err := f.svc.IssueCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Ownership Mismatch Looks Identical", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)
		f.users.Users["u2"] = domain.User{ID: "u2"}

		req := validIssueRequest()
		req.CallerUserID = "u2"
		if _, err := f.svc.IssueCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Unknown Role Type", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validIssueRequest()
		req.RoleType = "admin"
		if _, err := f.svc.IssueCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})

	t.Run("Malformed Account ID", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validIssueRequest()
		req.TargetAccountID = "12345"
		if _, err := f.svc.IssueCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validIssueRequest()
		req.CallerUserID = "ghost"
		if _, err := f.svc.IssueCredentials(ctx, req); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)
		f.limiter.Err = domain.ErrRateLimitExceeded

		if _, err := f.svc.IssueCredentials(ctx, validIssueRequest()); !errors.Is(err, domain.ErrRateLimitExceeded) {
			t.Errorf("expected ErrRateLimitExceeded, got %v", err)
		}
		if len(f.assumer.Inputs) != 0 {
			t.Error("rate-limited request must not reach the provider")
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)
		f.assumer.Err = fmt.Errorf("%w: assume role: throttled", domain.ErrUpstream)

		if _, err := f.svc.IssueCredentials(ctx, validIssueRequest()); !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})
}

func validValidateRequest() ValidateRequest {
	return ValidateRequest{
		OrgName:      "acme",
		CallerUserID: "u1",
		APIKey:       "acme-api-key",
		Credentials: domain.TemporaryCredentials{
			AccessKeyID:     "ASIAEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
		},
	}
}

func TestBrokerService_ValidateCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid Credentials", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		identity, err := f.svc.ValidateCredentials(ctx, validValidateRequest())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if identity.ARN != f.resolver.Identity.ARN || identity.AccountID != "123456789012" {
			t.Errorf("unexpected identity %+v", identity)
		}
		if len(f.resolver.Resolved) != 1 || f.resolver.Resolved[0].AccessKeyID != "ASIAEXAMPLE" {
			t.Errorf("resolver must see the supplied credentials, got %+v", f.resolver.Resolved)
		}
	})

	t.Run("Rejected By Provider", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)
		f.resolver.Err = errors.New("ExpiredToken: the security token has expired")

		if _, err := f.svc.ValidateCredentials(ctx, validValidateRequest()); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Wrong API Key", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validValidateRequest()
		req.APIKey = "wrong"
		if _, err := f.svc.ValidateCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		if len(f.resolver.Resolved) != 0 {
			t.Error("unauthenticated request must not reach the provider")
		}
	})

	t.Run("Not Validated", func(t *testing.T) {
		f := newBrokerFixture(t)

		if _, err := f.svc.ValidateCredentials(ctx, validValidateRequest()); !errors.Is(err, domain.ErrNotValidated) {
			t.Errorf("expected ErrNotValidated, got %v", err)
		}
	})

	t.Run("Missing Credential Fields", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		req := validValidateRequest()
		req.Credentials.SessionToken = ""
		if _, err := f.svc.ValidateCredentials(ctx, req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)
		f.limiter.Err = domain.ErrRateLimitExceeded

		if _, err := f.svc.ValidateCredentials(ctx, validValidateRequest()); !errors.Is(err, domain.ErrRateLimitExceeded) {
			t.Errorf("expected ErrRateLimitExceeded, got %v", err)
		}
	})

	t.Run("Rate Limit Subject Is Scoped To Validation", func(t *testing.T) {
		f := newBrokerFixture(t)
		f.validate(t)

		if _, err := f.svc.ValidateCredentials(ctx, validValidateRequest()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.limiter.Subjects) != 1 || f.limiter.Subjects[0] != "validate:u1:acme" {
			t.Errorf("unexpected limiter subjects %v", f.limiter.Subjects)
		}
	})
}
