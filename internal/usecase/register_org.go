package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/metrics"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Secret lengths. The external id is longer because it doubles as the
// anti-confused-deputy token in the role trust policy.
const (
	apiKeyLength     = 40
	externalIDLength = 48
)

// generateSecret draws length characters uniformly from the wide alphabet
// using the system CSPRNG.
func generateSecret(length int) (string, error) {
	alphabetSize := big.NewInt(int64(len(secretAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// RegistrationResult carries the created record plus the plaintext
// secrets. This is the only moment the plaintext API key leaves the
// service.
type RegistrationResult struct {
	Org        *domain.Organization
	APIKey     string
	ExternalID string
}

// RegistrationService handles idempotent organization registration.
type RegistrationService struct {
	orgs    domain.OrganizationRepository
	users   domain.UserRepository
	idem    domain.IdempotencyStore
	audit   domain.AuditRecorder
	metrics *metrics.BrokerMetrics
	logger  *slog.Logger
}

// NewRegistrationService creates a new RegistrationService. The metrics
// argument may be nil, in which case counters are skipped.
func NewRegistrationService(
	orgs domain.OrganizationRepository,
	users domain.UserRepository,
	idem domain.IdempotencyStore,
	audit domain.AuditRecorder,
	brokerMetrics *metrics.BrokerMetrics,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		orgs:    orgs,
		users:   users,
		idem:    idem,
		audit:   audit,
		metrics: brokerMetrics,
		logger:  logger.With("component", "registration_service"),
	}
}

// Register claims the idempotency key, generates the secrets, and
// atomically creates the organization record. The idempotency claim comes
// first so a retried request cannot double-register under a second name.
func (s *RegistrationService) Register(ctx context.Context, orgName, ownerUserID, idempotencyKey string) (*RegistrationResult, error) {
	if orgName == "" || ownerUserID == "" {
		return nil, fmt.Errorf("%w: org name and user id are required", domain.ErrInvalidInput)
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", domain.ErrInvalidInput)
	}

	claimed, err := s.idem.Claim(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		if s.metrics != nil {
			s.metrics.IdempotencyConflictsTotal.Inc()
		}
		return nil, fmt.Errorf("%w: %q", domain.ErrIdempotencyConflict, idempotencyKey)
	}

	exists, err := s.users.EnsureUser(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, ownerUserID)
	}

	apiKey, err := generateSecret(apiKeyLength)
	if err != nil {
		return nil, err
	}
	externalID, err := generateSecret(externalIDLength)
	if err != nil {
		return nil, err
	}

	record, err := s.orgs.CreateOrg(ctx, orgName, ownerUserID, apiKey, externalID)
	if err != nil {
		if s.metrics != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				s.metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			} else {
				s.metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	}
	s.recordAudit(ctx, domain.AuditEvent{
		Event:   domain.AuditOrgRegistered,
		UserID:  ownerUserID,
		OrgName: orgName,
	})
	s.logger.Info("organization registered", "org", orgName, "user_id", ownerUserID)

	return &RegistrationResult{Org: record, APIKey: apiKey, ExternalID: externalID}, nil
}

func (s *RegistrationService) recordAudit(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event", "error", err, "event", event.Event)
	}
}
