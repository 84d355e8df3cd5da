package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// WorkloadResult reports the outcome of a deploy call.
type WorkloadResult struct {
	StackName string `json:"stack_name"`
	StackID   string `json:"stack_id"`
	Changed   bool   `json:"changed"`
}

// WorkloadService manages the per-organization workload stack in the
// customer account, reusing the broker's assume-role pattern for every
// provider call.
type WorkloadService struct {
	orgs    domain.OrganizationRepository
	assumer domain.RoleAssumer
	stacks  domain.StackClient
	logger  *slog.Logger

	roleName          string
	sessionNameFormat string
	sessionDuration   time.Duration

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewWorkloadService creates a new WorkloadService. roleName is the IAM
// role deployed by the integration stack.
func NewWorkloadService(
	orgs domain.OrganizationRepository,
	assumer domain.RoleAssumer,
	stacks domain.StackClient,
	roleName, sessionNameFormat string,
	sessionDuration time.Duration,
	logger *slog.Logger,
) *WorkloadService {
	return &WorkloadService{
		orgs:              orgs,
		assumer:           assumer,
		stacks:            stacks,
		roleName:          roleName,
		sessionNameFormat: sessionNameFormat,
		sessionDuration:   sessionDuration,
		logger:            logger.With("component", "workload_service"),
		now:               time.Now,
	}
}

func workloadStackName(orgName string) string {
	return "sunrin-workload-" + orgName
}

// Describe returns the current workload stack, or ErrNotFound when no
// stack is deployed.
func (s *WorkloadService) Describe(ctx context.Context, orgName, callerUserID, apiKey string) (*domain.WorkloadStack, error) {
	creds, _, err := s.assumeForOrg(ctx, orgName, callerUserID, apiKey)
	if err != nil {
		return nil, err
	}

	stack, err := s.stacks.Describe(ctx, *creds, workloadStackName(orgName))
	if err != nil {
		return nil, err
	}
	if stack == nil {
		return nil, fmt.Errorf("%w: no workload stack for %q", domain.ErrNotFound, orgName)
	}
	return stack, nil
}

// Deploy creates the workload stack, or updates it when one already
// exists. An update with nothing to change reports Changed=false.
func (s *WorkloadService) Deploy(ctx context.Context, orgName, callerUserID, apiKey string, parameters map[string]string) (*WorkloadResult, error) {
	creds, _, err := s.assumeForOrg(ctx, orgName, callerUserID, apiKey)
	if err != nil {
		return nil, err
	}

	stackName := workloadStackName(orgName)
	exists, err := s.stacks.Exists(ctx, *creds, stackName)
	if err != nil {
		return nil, err
	}

	if exists {
		id, changed, err := s.stacks.Update(ctx, *creds, stackName, parameters)
		if err != nil {
			return nil, err
		}
		s.logger.Info("workload stack updated", "org", orgName, "stack", stackName, "changed", changed)
		return &WorkloadResult{StackName: stackName, StackID: id, Changed: changed}, nil
	}

	id, err := s.stacks.Create(ctx, *creds, stackName, parameters)
	if err != nil {
		return nil, err
	}
	s.logger.Info("workload stack created", "org", orgName, "stack", stackName)
	return &WorkloadResult{StackName: stackName, StackID: id, Changed: true}, nil
}

// Destroy deletes the workload stack. Deleting an absent stack is a
// no-op at the provider, so no existence probe is needed.
func (s *WorkloadService) Destroy(ctx context.Context, orgName, callerUserID, apiKey string) error {
	creds, _, err := s.assumeForOrg(ctx, orgName, callerUserID, apiKey)
	if err != nil {
		return err
	}
	if err := s.stacks.Delete(ctx, *creds, workloadStackName(orgName)); err != nil {
		return err
	}
	s.logger.Info("workload stack deleted", "org", orgName)
	return nil
}

// assumeForOrg runs the broker's precondition chain against the
// organization's own validated account, then assumes the workload role
// there.
func (s *WorkloadService) assumeForOrg(ctx context.Context, orgName, callerUserID, apiKey string) (*domain.TemporaryCredentials, *domain.Organization, error) {
	record, err := s.orgs.VerifyAPIKey(ctx, orgName, apiKey)
	if err != nil {
		return nil, nil, err
	}
	if record.OwnerUserID != callerUserID {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !record.ValidationStatus || record.AccountID == "" {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrNotValidated, orgName)
	}

	externalID, err := s.orgs.DecryptExternalID(record)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to recover external id: %w", err)
	}

	creds, err := s.assumer.AssumeRole(ctx, domain.AssumeRoleInput{
		RoleARN:     buildRoleARN(record.AccountPartition, record.AccountID, s.roleName),
		SessionName: BuildSessionName(s.sessionNameFormat, orgName, callerUserID, s.now()),
		ExternalID:  externalID,
		Duration:    s.sessionDuration,
	})
	if err != nil {
		return nil, nil, err
	}
	return creds, record, nil
}
