package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// Presigned template links outlive a typical onboarding session.
const templateURLExpiry = 15 * time.Minute

// TemplatePresigner generates time-limited GET URLs for the onboarding
// template object.
type TemplatePresigner interface {
	PresignTemplateURL(ctx context.Context, bucket, key string, expiresIn time.Duration) (string, error)
}

// IntegrationLinks are the three ways an organization owner can deploy
// the cross-account role stack into their own account.
type IntegrationLinks struct {
	TemplateURL    string `json:"template_url"`
	QuickCreateURL string `json:"quick_create_url"`
	CLICommand     string `json:"cli_command"`
}

// IntegrationService builds per-organization onboarding links. The
// external id is embedded in the links so the deployed role's trust
// policy carries it from the start.
type IntegrationService struct {
	orgs      domain.OrganizationRepository
	presigner TemplatePresigner
	logger    *slog.Logger

	bucket       string
	key          string
	region       string
	publicAccess bool
}

// NewIntegrationService creates a new IntegrationService. With
// publicAccess set, links point at the bucket's public URL and the
// presigner is never called.
func NewIntegrationService(
	orgs domain.OrganizationRepository,
	presigner TemplatePresigner,
	bucket, key, region string,
	publicAccess bool,
	logger *slog.Logger,
) *IntegrationService {
	return &IntegrationService{
		orgs:         orgs,
		presigner:    presigner,
		bucket:       bucket,
		key:          key,
		region:       region,
		publicAccess: publicAccess,
		logger:       logger.With("component", "integration_service"),
	}
}

// Links authenticates the caller and returns the onboarding links for
// the organization. The links embed the decrypted external id, so the
// caller must present the org's API key. Unknown org, wrong key, and
// ownership mismatch are all indistinguishable to the caller.
func (s *IntegrationService) Links(ctx context.Context, orgName, callerUserID, apiKey string) (*IntegrationLinks, error) {
	record, err := s.orgs.VerifyAPIKey(ctx, orgName, apiKey)
	if err != nil {
		return nil, err
	}
	if record.OwnerUserID != callerUserID {
		return nil, domain.ErrInvalidCredentials
	}
	return s.BuildLinks(ctx, record)
}

// BuildLinks assembles the links for an already loaded record. Handlers
// reuse it for the remediation body of a not-validated response.
func (s *IntegrationService) BuildLinks(ctx context.Context, record *domain.Organization) (*IntegrationLinks, error) {
	externalID, err := s.orgs.DecryptExternalID(record)
	if err != nil {
		return nil, fmt.Errorf("failed to recover external id: %w", err)
	}

	templateURL, err := s.templateURL(ctx)
	if err != nil {
		return nil, err
	}

	stackName := "sunrin-integration-" + record.Name
	return &IntegrationLinks{
		TemplateURL:    templateURL,
		QuickCreateURL: s.quickCreateURL(templateURL, stackName, record.Name, externalID),
		CLICommand:     s.cliCommand(templateURL, stackName, record.Name, externalID),
	}, nil
}

func (s *IntegrationService) templateURL(ctx context.Context) (string, error) {
	if s.publicAccess {
		return s.publicTemplateURL(), nil
	}
	templateURL, err := s.presigner.PresignTemplateURL(ctx, s.bucket, s.key, templateURLExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: presign template url: %v", domain.ErrUpstream, err)
	}
	return templateURL, nil
}

// publicTemplateURL builds the virtual-hosted URL for a template object
// in a publicly readable bucket. us-east-1 URLs carry no region segment.
func (s *IntegrationService) publicTemplateURL() string {
	regionSegment := ""
	if s.region != "" && s.region != "us-east-1" {
		regionSegment = "." + s.region
	}
	return fmt.Sprintf("https://%s.s3%s.amazonaws.com/%s", s.bucket, regionSegment, url.PathEscape(s.key))
}

// quickCreateURL builds the console quick-create link. Stack parameters
// travel as param_-prefixed query values after the fragment.
func (s *IntegrationService) quickCreateURL(templateURL, stackName, orgName, externalID string) string {
	q := url.Values{}
	q.Set("templateURL", templateURL)
	q.Set("stackName", stackName)
	q.Set("param_OrgName", orgName)
	q.Set("param_ExternalId", externalID)
	return fmt.Sprintf(
		"https://%s.console.aws.amazon.com/cloudformation/home?region=%s#/stacks/create/review?%s",
		s.region, s.region, q.Encode(),
	)
}

func (s *IntegrationService) cliCommand(templateURL, stackName, orgName, externalID string) string {
	return strings.Join([]string{
		"aws", "cloudformation", "create-stack",
		"--stack-name", shellQuote(stackName),
		"--template-url", shellQuote(templateURL),
		"--parameters",
		shellQuote("ParameterKey=OrgName,ParameterValue=" + orgName),
		shellQuote("ParameterKey=ExternalId,ParameterValue=" + externalID),
		"--capabilities", "CAPABILITY_NAMED_IAM",
		"--region", s.region,
	}, " ")
}

// shellQuote single-quotes a value for copy-paste into a POSIX shell.
func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
