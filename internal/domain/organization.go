package domain

import "time"

// Organization is the canonical tenant record. Name is immutable after
// creation and globally unique. The API key and external id exist at rest
// only as APIKeyCipher/ExternalIDCipher; APIKeyHash is the sole means of
// verifying a supplied key without decryption.
type Organization struct {
	Name                string
	OwnerUserID         string
	APIKeyCipher        []byte
	APIKeyHash          string
	ExternalIDCipher    []byte
	ValidationStatus    bool
	ValidationUpdatedAt *time.Time

	// Attached by the validation webhook, never before.
	AccountID        string
	AccountPartition string
	AccountTags      map[string]string
}

// ValidationUpdate carries the optional account metadata supplied by the
// validation webhook. Nil fields are left unchanged in the stored record.
type ValidationUpdate struct {
	AccountID        *string
	AccountPartition *string
	AccountTags      map[string]string
}

// TemporaryCredentials is a non-persisted value object produced per
// issuance request. Expiration is RFC3339.
type TemporaryCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	Expiration      string `json:"expiration"`
}

// User is a minimal operator identity; organizations reference it by id.
type User struct {
	ID       string
	Metadata map[string]string
}

// AuditEvent is a structured record of a privileged operation, written to
// the audit sink after the operation succeeds.
type AuditEvent struct {
	ID         string
	Event      string
	UserID     string
	OrgName    string
	Detail     map[string]string
	OccurredAt time.Time
}

// Audit event names.
const (
	AuditUserCreated       = "user_created"
	AuditOrgRegistered     = "org_registered"
	AuditOrgValidated      = "org_validated"
	AuditCredentialsIssued = "sts_credentials_issued"
)
