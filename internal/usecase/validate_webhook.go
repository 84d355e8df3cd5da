package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/adapter/metrics"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/crypto"
)

// WebhookRequest is one inbound validation callback, carried verbatim:
// the signature covers the raw payload bytes.
type WebhookRequest struct {
	Payload   []byte
	Signature string
	Timestamp int64
	Nonce     string
}

type webhookPayload struct {
	OrgName          string            `json:"org_name"`
	APIKey           string            `json:"api_key"`
	AccountID        *string           `json:"account_id"`
	AccountPartition *string           `json:"account_partition"`
	AccountTags      map[string]string `json:"account_tags"`
}

// WebhookService verifies signed validation callbacks and transitions
// organizations from pending to validated.
type WebhookService struct {
	orgs      domain.OrganizationRepository
	nonces    domain.NonceStore
	audit     domain.AuditRecorder
	metrics   *metrics.BrokerMetrics
	tolerance time.Duration
	logger    *slog.Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewWebhookService creates a new WebhookService; metrics may be nil.
func NewWebhookService(
	orgs domain.OrganizationRepository,
	nonces domain.NonceStore,
	audit domain.AuditRecorder,
	brokerMetrics *metrics.BrokerMetrics,
	tolerance time.Duration,
	logger *slog.Logger,
) *WebhookService {
	if tolerance <= 0 {
		tolerance = crypto.DefaultSignatureTolerance
	}
	return &WebhookService{
		orgs:      orgs,
		nonces:    nonces,
		audit:     audit,
		metrics:   brokerMetrics,
		tolerance: tolerance,
		logger:    logger.With("component", "webhook_service"),
		now:       time.Now,
	}
}

// HandleValidation verifies authenticity, freshness, and single-use, then
// marks the organization validated with the supplied account metadata.
// Every verification failure surfaces as a *crypto.SignatureError; the
// nonce is claimed only after the signature checks out, so forged requests
// cannot exhaust the nonce space of a valid organization.
func (s *WebhookService) HandleValidation(ctx context.Context, req WebhookRequest) error {
	if req.Nonce == "" {
		return s.reject("missing nonce")
	}

	var payload webhookPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil || payload.OrgName == "" {
		return s.reject("malformed payload")
	}

	record, err := s.orgs.GetOrg(ctx, payload.OrgName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.reject("unknown organization")
		}
		return fmt.Errorf("failed to load organization: %w", err)
	}

	secret, err := s.orgs.DecryptAPIKey(record)
	if err != nil {
		return fmt.Errorf("failed to recover signing secret: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(payload.APIKey), []byte(secret)) != 1 {
		return s.reject("credential mismatch")
	}

	verifier := crypto.HMACVerifier{Secret: []byte(secret), Tolerance: s.tolerance, Now: s.now}
	if err := verifier.Verify(req.Payload, req.Signature, req.Timestamp, req.Nonce); err != nil {
		var sigErr *crypto.SignatureError
		if errors.As(err, &sigErr) {
			return s.reject(sigErr.Reason)
		}
		return err
	}

	claimed, err := s.nonces.Claim(ctx, payload.OrgName, req.Nonce, s.tolerance)
	if err != nil {
		return fmt.Errorf("failed to claim nonce: %w", err)
	}
	if !claimed {
		return s.reject("nonce already used")
	}

	update := domain.ValidationUpdate{
		AccountID:        payload.AccountID,
		AccountPartition: payload.AccountPartition,
		AccountTags:      payload.AccountTags,
	}
	if err := s.orgs.MarkValidated(ctx, payload.OrgName, update); err != nil {
		return fmt.Errorf("failed to mark organization validated: %w", err)
	}

	if s.metrics != nil {
		s.metrics.WebhookVerificationsTotal.WithLabelValues("validated").Inc()
	}
	s.recordAudit(ctx, domain.AuditEvent{
		Event:   domain.AuditOrgValidated,
		OrgName: payload.OrgName,
	})
	s.logger.Info("organization validated", "org", payload.OrgName)
	return nil
}

// reject counts and logs the failure, then returns the single externally
// visible error kind. The reason stays in logs; handlers respond with a
// generic message.
func (s *WebhookService) reject(reason string) error {
	if s.metrics != nil {
		s.metrics.WebhookVerificationsTotal.WithLabelValues("rejected").Inc()
	}
	s.logger.Warn("validation webhook rejected", "reason", reason)
	return &crypto.SignatureError{Reason: reason}
}

func (s *WebhookService) recordAudit(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record audit event", "error", err, "event", event.Event)
	}
}
