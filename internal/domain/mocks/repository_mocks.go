package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// MockOrgRepository is an in-memory implementation of
// domain.OrganizationRepository for testing.
type MockOrgRepository struct {
	mu          sync.Mutex
	Orgs        map[string]*domain.Organization
	APIKeys     map[string]string // org name -> plaintext api key
	ExternalIDs map[string]string // org name -> plaintext external id
	Validated   []string

	CreateErr error
	GetErr    error
	MarkErr   error
}

func NewMockOrgRepository() *MockOrgRepository {
	return &MockOrgRepository{
		Orgs:        make(map[string]*domain.Organization),
		APIKeys:     make(map[string]string),
		ExternalIDs: make(map[string]string),
	}
}

func (m *MockOrgRepository) CreateOrg(ctx context.Context, orgName, ownerUserID, apiKey, externalID string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, exists := m.Orgs[orgName]; exists {
		return nil, domain.ErrAlreadyExists
	}
	record := &domain.Organization{Name: orgName, OwnerUserID: ownerUserID}
	m.Orgs[orgName] = record
	m.APIKeys[orgName] = apiKey
	m.ExternalIDs[orgName] = externalID
	return record, nil
}

func (m *MockOrgRepository) GetOrg(ctx context.Context, orgName string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	record, ok := m.Orgs[orgName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (m *MockOrgRepository) VerifyAPIKey(ctx context.Context, orgName, apiKey string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.Orgs[orgName]
	if !ok || m.APIKeys[orgName] != apiKey {
		return nil, domain.ErrInvalidCredentials
	}
	return record, nil
}

func (m *MockOrgRepository) MarkValidated(ctx context.Context, orgName string, update domain.ValidationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	record, ok := m.Orgs[orgName]
	if !ok {
		return domain.ErrNotFound
	}
	record.ValidationStatus = true
	now := time.Now().UTC()
	record.ValidationUpdatedAt = &now
	if update.AccountID != nil {
		record.AccountID = *update.AccountID
	}
	if update.AccountPartition != nil {
		record.AccountPartition = *update.AccountPartition
	}
	if update.AccountTags != nil {
		record.AccountTags = update.AccountTags
	}
	m.Validated = append(m.Validated, orgName)
	return nil
}

func (m *MockOrgRepository) ListOrgsForUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name, record := range m.Orgs {
		if record.OwnerUserID == userID {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *MockOrgRepository) DecryptAPIKey(record *domain.Organization) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.APIKeys[record.Name], nil
}

func (m *MockOrgRepository) DecryptExternalID(record *domain.Organization) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExternalIDs[record.Name], nil
}

// MockUserRepository is an in-memory domain.UserRepository.
type MockUserRepository struct {
	mu        sync.Mutex
	Users     map[string]domain.User
	CreateErr error
}

func NewMockUserRepository(ids ...string) *MockUserRepository {
	m := &MockUserRepository{Users: make(map[string]domain.User)}
	for _, id := range ids {
		m.Users[id] = domain.User{ID: id}
	}
	return m
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) EnsureUser(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Users[userID]
	return ok, nil
}

// MockNonceStore is an in-memory domain.NonceStore.
type MockNonceStore struct {
	mu       sync.Mutex
	Claimed  map[string]bool
	ClaimErr error
}

func NewMockNonceStore() *MockNonceStore {
	return &MockNonceStore{Claimed: make(map[string]bool)}
}

func (m *MockNonceStore) Claim(ctx context.Context, orgName, nonce string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	key := orgName + ":" + nonce
	if m.Claimed[key] {
		return false, nil
	}
	m.Claimed[key] = true
	return true, nil
}

// MockIdempotencyStore is an in-memory domain.IdempotencyStore.
type MockIdempotencyStore struct {
	mu       sync.Mutex
	Claimed  map[string]bool
	ClaimErr error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{Claimed: make(map[string]bool)}
}

func (m *MockIdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	if m.Claimed[key] {
		return false, nil
	}
	m.Claimed[key] = true
	return true, nil
}

// MockRateLimiter is a configurable domain.RateLimiter.
type MockRateLimiter struct {
	mu       sync.Mutex
	Err      error
	Subjects []string
}

func (m *MockRateLimiter) Check(ctx context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subjects = append(m.Subjects, subject)
	return m.Err
}

// MockAuditRecorder collects audit events.
type MockAuditRecorder struct {
	mu     sync.Mutex
	Events []domain.AuditEvent
	Err    error
}

func (m *MockAuditRecorder) Record(ctx context.Context, event domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, event)
	return nil
}

// MockRoleAssumer records assume-role calls and returns configured
// credentials.
type MockRoleAssumer struct {
	mu     sync.Mutex
	Creds  *domain.TemporaryCredentials
	Err    error
	Inputs []domain.AssumeRoleInput
}

func (m *MockRoleAssumer) AssumeRole(ctx context.Context, input domain.AssumeRoleInput) (*domain.TemporaryCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, input)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Creds, nil
}

// MockIdentityResolver records resolve calls and returns a configured
// identity.
type MockIdentityResolver struct {
	mu       sync.Mutex
	Identity *domain.CallerIdentity
	Err      error
	Resolved []domain.TemporaryCredentials
}

func (m *MockIdentityResolver) ResolveIdentity(ctx context.Context, creds domain.TemporaryCredentials) (*domain.CallerIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resolved = append(m.Resolved, creds)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Identity, nil
}

// MockStackClient is a configurable domain.StackClient.
type MockStackClient struct {
	mu          sync.Mutex
	ExistsVal   bool
	Stack       *domain.WorkloadStack
	CreatedWith map[string]string
	UpdatedWith map[string]string
	Deleted     []string
	CreateID    string
	UpdateID    string
	Changed     bool
	Err         error
}

func (m *MockStackClient) Exists(ctx context.Context, creds domain.TemporaryCredentials, stackName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExistsVal, m.Err
}

func (m *MockStackClient) Describe(ctx context.Context, creds domain.TemporaryCredentials, stackName string) (*domain.WorkloadStack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stack, m.Err
}

func (m *MockStackClient) Create(ctx context.Context, creds domain.TemporaryCredentials, stackName string, parameters map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.CreatedWith = parameters
	return m.CreateID, nil
}

func (m *MockStackClient) Update(ctx context.Context, creds domain.TemporaryCredentials, stackName string, parameters map[string]string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	m.UpdatedWith = parameters
	return m.UpdateID, m.Changed, nil
}

func (m *MockStackClient) Delete(ctx context.Context, creds domain.TemporaryCredentials, stackName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Deleted = append(m.Deleted, stackName)
	return nil
}
