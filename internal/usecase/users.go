package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// UserService manages operator identities.
type UserService struct {
	users  domain.UserRepository
	orgs   domain.OrganizationRepository
	audit  domain.AuditRecorder
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users domain.UserRepository, orgs domain.OrganizationRepository, audit domain.AuditRecorder, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		orgs:   orgs,
		audit:  audit,
		logger: logger.With("component", "user_service"),
	}
}

// CreateUser mints a short random operator id and persists the record.
func (s *UserService) CreateUser(ctx context.Context, metadata map[string]string) (*domain.User, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	user := domain.User{ID: id, Metadata: metadata}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.recordAudit(ctx, domain.AuditEvent{
		Event:  domain.AuditUserCreated,
		UserID: id,
	})
	s.logger.Info("user created", "user_id", id)
	return &user, nil
}

// ListOrganizations returns the organization names owned by the user.
// Unknown users get ErrNotFound rather than an empty list.
func (s *UserService) ListOrganizations(ctx context.Context, userID string) ([]string, error) {
	exists, err := s.users.EnsureUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %q", domain.ErrNotFound, userID)
	}
	return s.orgs.ListOrgsForUser(ctx, userID)
}

func (s *UserService) recordAudit(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	if err := s.audit.Record(ctx, event); err != nil {
		// Audit failures never fail the audited operation.
		s.logger.Warn("failed to record audit event", "error", err, "event", event.Event)
	}
}
