package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain/mocks"
)

func TestGenerateSecret(t *testing.T) {
	first, err := generateSecret(apiKeyLength)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(first) != apiKeyLength {
		t.Errorf("expected length %d, got %d", apiKeyLength, len(first))
	}
	for _, c := range first {
		if !strings.ContainsRune(secretAlphabet, c) {
			t.Errorf("character %q outside alphabet", c)
		}
	}

	second, err := generateSecret(apiKeyLength)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first == second {
		t.Error("two generated secrets should not collide")
	}
}

func TestRegistrationService_Register(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("Successful Registration", func(t *testing.T) {
		orgs := mocks.NewMockOrgRepository()
		users := mocks.NewMockUserRepository("u1")
		audit := &mocks.MockAuditRecorder{}
		svc := NewRegistrationService(orgs, users, mocks.NewMockIdempotencyStore(), audit, nil, logger)

		result, err := svc.Register(ctx, "acme", "u1", "idem-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.APIKey) != apiKeyLength {
			t.Errorf("expected api key of %d chars, got %d", apiKeyLength, len(result.APIKey))
		}
		if len(result.ExternalID) != externalIDLength {
			t.Errorf("expected external id of %d chars, got %d", externalIDLength, len(result.ExternalID))
		}
		if result.Org.Name != "acme" || result.Org.OwnerUserID != "u1" {
			t.Errorf("unexpected record: %+v", result.Org)
		}
		if len(audit.Events) != 1 || audit.Events[0].Event != domain.AuditOrgRegistered {
			t.Errorf("expected one org_registered audit event, got %+v", audit.Events)
		}
	})

	t.Run("Duplicate Name", func(t *testing.T) {
		orgs := mocks.NewMockOrgRepository()
		users := mocks.NewMockUserRepository("u1")
		svc := NewRegistrationService(orgs, users, mocks.NewMockIdempotencyStore(), nil, nil, logger)

		if _, err := svc.Register(ctx, "acme", "u1", "idem-1"); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		_, err := svc.Register(ctx, "acme", "u1", "idem-2")
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("Idempotency Key Reuse", func(t *testing.T) {
		orgs := mocks.NewMockOrgRepository()
		users := mocks.NewMockUserRepository("u1")
		svc := NewRegistrationService(orgs, users, mocks.NewMockIdempotencyStore(), nil, nil, logger)

		if _, err := svc.Register(ctx, "acme", "u1", "idem-1"); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		_, err := svc.Register(ctx, "globex", "u1", "idem-1")
		if !errors.Is(err, domain.ErrIdempotencyConflict) {
			t.Errorf("expected ErrIdempotencyConflict, got %v", err)
		}
		if _, ok := orgs.Orgs["globex"]; ok {
			t.Error("conflicting request must not create a record")
		}
	})

	t.Run("Unknown User", func(t *testing.T) {
		svc := NewRegistrationService(mocks.NewMockOrgRepository(), mocks.NewMockUserRepository(), mocks.NewMockIdempotencyStore(), nil, nil, logger)

		_, err := svc.Register(ctx, "acme", "ghost", "idem-1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Missing Fields", func(t *testing.T) {
		svc := NewRegistrationService(mocks.NewMockOrgRepository(), mocks.NewMockUserRepository("u1"), mocks.NewMockIdempotencyStore(), nil, nil, logger)

		if _, err := svc.Register(ctx, "", "u1", "idem-1"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty org name, got %v", err)
		}
		if _, err := svc.Register(ctx, "acme", "u1", ""); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for missing idempotency key, got %v", err)
		}
	})
}
