package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/metrics"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// STS caps role session names at 64 characters.
const (
	sessionNameMaxLength   = 64
	sessionTimestampLayout = "20060102T150405Z"
)

var accountIDPattern = regexp.MustCompile(`^[0-9]{12}$`)

// BuildSessionName substitutes {org_name} and {user_id} into the
// configured template and truncates the base so the fixed-width UTC
// timestamp suffix always fits within the 64-character ceiling. The base
// keeps at least one character rather than failing.
func BuildSessionName(format, orgName, userID string, now time.Time) string {
	base := strings.ReplaceAll(format, "{org_name}", orgName)
	base = strings.ReplaceAll(base, "{user_id}", userID)

	suffix := now.UTC().Format(sessionTimestampLayout)
	avail := sessionNameMaxLength - len(suffix) - 1
	if avail < 1 {
		avail = 1
	}
	if len(base) > avail {
		base = base[:avail]
	}
	return base + "-" + suffix
}

// IssueRequest carries one credential-issuance request.
type IssueRequest struct {
	OrgName         string
	CallerUserID    string
	RoleType        string
	TargetAccountID string
	APIKey          string
}

// BrokerService exchanges a verified organizational identity for
// short-lived STS session credentials.
type BrokerService struct {
	orgs     domain.OrganizationRepository
	users    domain.UserRepository
	limiter  domain.RateLimiter
	assumer  domain.RoleAssumer
	resolver domain.IdentityResolver
	audit    domain.AuditRecorder
	metrics  *metrics.BrokerMetrics
	logger   *slog.Logger

	roleMap           map[string]string
	sessionNameFormat string
	sessionDuration   time.Duration

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewBrokerService creates a new BrokerService. roleMap maps logical role
// types to IAM role names; metrics may be nil.
func NewBrokerService(
	orgs domain.OrganizationRepository,
	users domain.UserRepository,
	limiter domain.RateLimiter,
	assumer domain.RoleAssumer,
	resolver domain.IdentityResolver,
	audit domain.AuditRecorder,
	brokerMetrics *metrics.BrokerMetrics,
	roleMap map[string]string,
	sessionNameFormat string,
	sessionDuration time.Duration,
	logger *slog.Logger,
) *BrokerService {
	return &BrokerService{
		orgs:              orgs,
		users:             users,
		limiter:           limiter,
		assumer:           assumer,
		resolver:          resolver,
		audit:             audit,
		metrics:           brokerMetrics,
		roleMap:           roleMap,
		sessionNameFormat: sessionNameFormat,
		sessionDuration:   sessionDuration,
		logger:            logger.With("component", "broker_service"),
		now:               time.Now,
	}
}

// IssueCredentials checks the preconditions in order, each failing with
// its own error kind: rate limit, input shape, user existence, api key
// plus ownership, validation status, role type. Only then does it assume
// the role in the target account.
func (s *BrokerService) IssueCredentials(ctx context.Context, req IssueRequest) (*domain.TemporaryCredentials, error) {
	subject := fmt.Sprintf("credentials:%s:%s", req.CallerUserID, req.OrgName)
	if err := s.limiter.Check(ctx, subject); err != nil {
		if errors.Is(err, domain.ErrRateLimitExceeded) && s.metrics != nil {
			s.metrics.RateLimitRejectionsTotal.Inc()
		}
		return nil, err
	}

	if req.OrgName == "" || req.CallerUserID == "" {
		return nil, fmt.Errorf("%w: org name and user id are required", domain.ErrInvalidInput)
	}
	if !accountIDPattern.MatchString(req.TargetAccountID) {
		return nil, fmt.Errorf("%w: target account id must be 12 digits", domain.ErrInvalidInput)
	}

	exists, err := s.users.EnsureUser(ctx, req.CallerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, req.CallerUserID)
	}

	// Wrong key, unknown org, and ownership mismatch are indistinguishable
	// to the caller.
	record, err := s.orgs.VerifyAPIKey(ctx, req.OrgName, req.APIKey)
	if err != nil {
		s.countIssue("invalid_credentials")
		return nil, err
	}
	if record.OwnerUserID != req.CallerUserID {
		s.countIssue("invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	if !record.ValidationStatus {
		s.countIssue("not_validated")
		return nil, fmt.Errorf("%w: %q", domain.ErrNotValidated, req.OrgName)
	}

	roleName, ok := s.roleMap[req.RoleType]
	if !ok {
		s.countIssue("invalid_role")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, req.RoleType)
	}

	externalID, err := s.orgs.DecryptExternalID(record)
	if err != nil {
		return nil, fmt.Errorf("failed to recover external id: %w", err)
	}

	creds, err := s.assumer.AssumeRole(ctx, domain.AssumeRoleInput{
		RoleARN:     buildRoleARN(record.AccountPartition, req.TargetAccountID, roleName),
		SessionName: BuildSessionName(s.sessionNameFormat, req.OrgName, req.CallerUserID, s.now()),
		ExternalID:  externalID,
		Duration:    s.sessionDuration,
	})
	if err != nil {
		s.countIssue("upstream_error")
		s.logger.Error("role assumption failed", "error", err, "org", req.OrgName)
		return nil, err
	}

	s.countIssue("issued")
	s.recordAudit(ctx, domain.AuditEvent{
		Event:   domain.AuditCredentialsIssued,
		UserID:  req.CallerUserID,
		OrgName: req.OrgName,
		Detail:  map[string]string{"role_type": req.RoleType, "target_account_id": req.TargetAccountID},
	})
	s.logger.Info("credentials issued", "org", req.OrgName, "user_id", req.CallerUserID, "role_type", req.RoleType)
	return creds, nil
}

// ValidateRequest carries a set of previously issued credentials for
// verification against the live provider.
type ValidateRequest struct {
	OrgName      string
	CallerUserID string
	APIKey       string
	Credentials  domain.TemporaryCredentials
}

// ValidateCredentials runs the same precondition chain as issuance, then
// asks the provider who the supplied credentials belong to. Credentials
// the provider rejects come back as ErrInvalidInput; the caller handed us
// something unusable, not our upstream failing.
func (s *BrokerService) ValidateCredentials(ctx context.Context, req ValidateRequest) (*domain.CallerIdentity, error) {
	subject := fmt.Sprintf("validate:%s:%s", req.CallerUserID, req.OrgName)
	if err := s.limiter.Check(ctx, subject); err != nil {
		if errors.Is(err, domain.ErrRateLimitExceeded) && s.metrics != nil {
			s.metrics.RateLimitRejectionsTotal.Inc()
		}
		return nil, err
	}

	if req.OrgName == "" || req.CallerUserID == "" {
		return nil, fmt.Errorf("%w: org name and user id are required", domain.ErrInvalidInput)
	}
	if req.Credentials.AccessKeyID == "" || req.Credentials.SecretAccessKey == "" || req.Credentials.SessionToken == "" {
		return nil, fmt.Errorf("%w: temporary credentials are required", domain.ErrInvalidInput)
	}

	exists, err := s.users.EnsureUser(ctx, req.CallerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, req.CallerUserID)
	}

	record, err := s.orgs.VerifyAPIKey(ctx, req.OrgName, req.APIKey)
	if err != nil {
		return nil, err
	}
	if record.OwnerUserID != req.CallerUserID {
		return nil, domain.ErrInvalidCredentials
	}

	if !record.ValidationStatus {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotValidated, req.OrgName)
	}

	identity, err := s.resolver.ResolveIdentity(ctx, req.Credentials)
	if err != nil {
		s.logger.Info("credential validation rejected", "org", req.OrgName, "user_id", req.CallerUserID, "error", err)
		return nil, fmt.Errorf("%w: credentials rejected by provider", domain.ErrInvalidInput)
	}

	s.logger.Info("credentials validated", "org", req.OrgName, "user_id", req.CallerUserID, "identity_arn", identity.ARN)
	return identity, nil
}

func buildRoleARN(partition, accountID, roleName string) string {
	if partition == "" {
		partition = "aws"
	}
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", partition, accountID, roleName)
}

func (s *BrokerService) countIssue(status string) {
	if s.metrics != nil {
		s.metrics.CredentialsIssuedTotal.WithLabelValues(status).Inc()
	}
}

func (s *BrokerService) recordAudit(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event", "error", err, "event", event.Event)
	}
}
