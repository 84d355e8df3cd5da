package domain

import (
	"context"
	"time"
)

// OrganizationRepository defines the persistent store of organization
// records. Creation must be a single atomic conditional write; a separate
// existence check followed by a set is a race across service instances.
type OrganizationRepository interface {
	// CreateOrg atomically creates the record for orgName, storing only
	// the key hash and the encrypted secrets. Returns ErrAlreadyExists if
	// the name is taken.
	CreateOrg(ctx context.Context, orgName, ownerUserID, apiKey, externalID string) (*Organization, error)

	// GetOrg returns the record or ErrNotFound.
	GetOrg(ctx context.Context, orgName string) (*Organization, error)

	// VerifyAPIKey returns the record when the supplied key matches the
	// stored hash. Any mismatch, including an unknown organization,
	// returns ErrInvalidCredentials.
	VerifyAPIKey(ctx context.Context, orgName, apiKey string) (*Organization, error)

	// MarkValidated transitions the record to validated and attaches the
	// supplied account metadata. Nil update fields are left unchanged.
	MarkValidated(ctx context.Context, orgName string, update ValidationUpdate) error

	// ListOrgsForUser returns the organization names owned by a user,
	// sorted. Listing only; not an invariant-bearing structure.
	ListOrgsForUser(ctx context.Context, userID string) ([]string, error)

	// DecryptAPIKey and DecryptExternalID recover the plaintext secrets
	// for server-side use. Never returned to external callers except at
	// creation time.
	DecryptAPIKey(record *Organization) (string, error)
	DecryptExternalID(record *Organization) (string, error)
}

// UserRepository stores operator identities.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	EnsureUser(ctx context.Context, userID string) (bool, error)
}

// NonceStore provides single-use claims for webhook nonces. Claim must be
// an atomic set-if-absent with expiry; false means already consumed.
type NonceStore interface {
	Claim(ctx context.Context, orgName, nonce string, ttl time.Duration) (bool, error)
}

// IdempotencyStore reserves caller-supplied idempotency keys. Claim must
// be an atomic set-if-absent with expiry; false means already processed.
type IdempotencyStore interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// RateLimiter throttles a subject with a shared, store-backed fixed
// window. Check returns ErrRateLimitExceeded when the window is full.
type RateLimiter interface {
	Check(ctx context.Context, subject string) error
}

// AuditRecorder persists audit events. Recording failures must never fail
// the audited operation.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AssumeRoleInput carries the parameters for one role assumption.
type AssumeRoleInput struct {
	RoleARN     string
	SessionName string
	ExternalID  string
	Duration    time.Duration
}

// RoleAssumer exchanges a role ARN plus anti-confused-deputy external id
// for short-lived credentials. Implementations wrap provider failures in
// ErrUpstream.
type RoleAssumer interface {
	AssumeRole(ctx context.Context, input AssumeRoleInput) (*TemporaryCredentials, error)
}

// CallerIdentity is the principal behind a set of temporary credentials.
type CallerIdentity struct {
	AccountID string
	ARN       string
	UserID    string
}

// IdentityResolver answers who a set of temporary credentials belongs to.
// Revoked or expired credentials resolve to an error.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, creds TemporaryCredentials) (*CallerIdentity, error)
}

// WorkloadStack describes a deployed per-organization workload stack.
type WorkloadStack struct {
	Name        string
	ID          string
	Status      string
	Outputs     map[string]string
	LastUpdated *time.Time
}

// StackClient manages the workload stack in the customer account using
// previously issued temporary credentials. Exists hides the provider's
// "not found by error message" probing behind a capability.
type StackClient interface {
	Exists(ctx context.Context, creds TemporaryCredentials, stackName string) (bool, error)
	Describe(ctx context.Context, creds TemporaryCredentials, stackName string) (*WorkloadStack, error)
	Create(ctx context.Context, creds TemporaryCredentials, stackName string, parameters map[string]string) (string, error)
	Update(ctx context.Context, creds TemporaryCredentials, stackName string, parameters map[string]string) (string, bool, error)
	Delete(ctx context.Context, creds TemporaryCredentials, stackName string) error
}
