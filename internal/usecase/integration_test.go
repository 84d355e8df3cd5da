package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain/mocks"
)

type stubPresigner struct {
	url string
	err error
}

func (s *stubPresigner) PresignTemplateURL(ctx context.Context, bucket, key string, expiresIn time.Duration) (string, error) {
	return s.url, s.err
}

func TestIntegrationService_Links(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	newFixture := func(t *testing.T, publicAccess bool, presigner TemplatePresigner) (*IntegrationService, *mocks.MockOrgRepository) {
		t.Helper()
		orgs := mocks.NewMockOrgRepository()
		if _, err := orgs.CreateOrg(ctx, "acme", "u1", "acme-api-key", "acme-external-id"); err != nil {
			t.Fatalf("fixture org: %v", err)
		}
		return NewIntegrationService(orgs, presigner, "templates-bucket", "stack.yaml", "ap-northeast-2", publicAccess, logger), orgs
	}

	t.Run("Public Template URL", func(t *testing.T) {
		svc, _ := newFixture(t, true, nil)

		links, err := svc.Links(ctx, "acme", "u1", "acme-api-key")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if links.TemplateURL != "https://templates-bucket.s3.ap-northeast-2.amazonaws.com/stack.yaml" {
			t.Errorf("unexpected template url %q", links.TemplateURL)
		}
		if !strings.Contains(links.QuickCreateURL, "param_ExternalId=acme-external-id") {
			t.Errorf("quick create url missing external id parameter: %q", links.QuickCreateURL)
		}
		if !strings.Contains(links.QuickCreateURL, "stackName=sunrin-integration-acme") {
			t.Errorf("quick create url missing stack name: %q", links.QuickCreateURL)
		}
		if !strings.Contains(links.CLICommand, "--capabilities CAPABILITY_NAMED_IAM") {
			t.Errorf("cli command missing capabilities: %q", links.CLICommand)
		}
		if !strings.Contains(links.CLICommand, "'ParameterKey=ExternalId,ParameterValue=acme-external-id'") {
			t.Errorf("cli command missing quoted external id: %q", links.CLICommand)
		}
	})

	t.Run("Presigned Template URL", func(t *testing.T) {
		svc, _ := newFixture(t, false, &stubPresigner{url: "https://signed.example/stack.yaml?X-Amz-Signature=abc"})

		links, err := svc.Links(ctx, "acme", "u1", "acme-api-key")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(links.TemplateURL, "https://signed.example/") {
			t.Errorf("unexpected template url %q", links.TemplateURL)
		}
	})

	t.Run("Presign Failure Is Upstream", func(t *testing.T) {
		svc, _ := newFixture(t, false, &stubPresigner{err: errors.New("s3 unreachable")})

		_, err := svc.Links(ctx, "acme", "u1", "acme-api-key")
		if !errors.Is(err, domain.ErrUpstream) {
			t.Errorf("expected ErrUpstream, got %v", err)
		}
	})

	t.Run("Ownership Enforced", func(t *testing.T) {
		svc, _ := newFixture(t, true, nil)

		if _, err := svc.Links(ctx, "acme", "u2", "acme-api-key"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Wrong API Key", func(t *testing.T) {
		svc, _ := newFixture(t, true, nil)

		if _, err := svc.Links(ctx, "acme", "u1", "guessed-key"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Unknown Organization Indistinguishable From Wrong Key", func(t *testing.T) {
		svc, _ := newFixture(t, true, nil)

		if _, err := svc.Links(ctx, "ghost", "u1", "acme-api-key"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestShellQuote(t *testing.T) {
	cases := map[string]string{
		"plain":        "'plain'",
		"":             "''",
		"with space":   "'with space'",
		"it's quoted":  `'it'\''s quoted'`,
		"$(dangerous)": "'$(dangerous)'",
	}
	for input, want := range cases {
		if got := shellQuote(input); got != want {
			t.Errorf("shellQuote(%q) = %q, want %q", input, got, want)
		}
	}
}
