// Package redis implements the shared-store adapters. All cross-instance
// invariants (organization existence, idempotency claims, nonce
// single-use, rate-limit counters) are enforced with atomic single-round-
// trip conditional operations; no in-process lock is relied upon.
package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/pkg/crypto"
)

const (
	orgKeyTemplate     = "v1:orgs:%s"
	userOrgKeyTemplate = "v1:users:%s:orgs"
)

// createOrgScript creates the organization hash only if the key does not
// exist yet. Existence check and write happen in one atomic round trip,
// so two concurrent registrations of the same name cannot both succeed
// and a half-written record is never observable.
var createOrgScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// OrgRepository persists organization records as Redis hashes. Binary
// fields are base64-encoded at this boundary; business logic only ever
// sees the typed domain.Organization.
type OrgRepository struct {
	client *redis.Client
	cipher *crypto.EnvelopeCipher
	hasher *crypto.VerificationHash
	logger *slog.Logger
}

// NewOrgRepository creates a Redis-backed organization repository.
func NewOrgRepository(client *redis.Client, cipher *crypto.EnvelopeCipher, hasher *crypto.VerificationHash, logger *slog.Logger) *OrgRepository {
	return &OrgRepository{
		client: client,
		cipher: cipher,
		hasher: hasher,
		logger: logger.With("component", "org_repository"),
	}
}

// CreateOrg encrypts and hashes the supplied secrets and writes the full
// record with a conditional create. The plaintexts never reach the store.
func (r *OrgRepository) CreateOrg(ctx context.Context, orgName, ownerUserID, apiKey, externalID string) (*domain.Organization, error) {
	apiKeyCipher, err := r.cipher.Encrypt([]byte(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}
	externalIDCipher, err := r.cipher.Encrypt([]byte(externalID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt external id: %w", err)
	}
	apiKeyHash, err := r.hasher.Hash(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key: %w", err)
	}

	fields := []interface{}{
		"owner_user_id", ownerUserID,
		"api_key_cipher", base64.StdEncoding.EncodeToString(apiKeyCipher),
		"api_key_hash", apiKeyHash,
		"external_id_cipher", base64.StdEncoding.EncodeToString(externalIDCipher),
		"validation_status", "0",
		"validation_updated_at", "",
		"account_id", "",
		"account_partition", "",
		"account_tags", "",
	}

	key := fmt.Sprintf(orgKeyTemplate, orgName)
	created, err := createOrgScript.Run(ctx, r.client, []string{key}, fields...).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to create organization record: %w", err)
	}
	if created == 0 {
		return nil, domain.ErrAlreadyExists
	}

	// The per-user set is listing-only; a failure here does not undo the
	// registration.
	indexKey := fmt.Sprintf(userOrgKeyTemplate, ownerUserID)
	if err := r.client.SAdd(ctx, indexKey, orgName).Err(); err != nil {
		r.logger.Warn("failed to index organization for user", "org_name", orgName, "user_id", ownerUserID, "error", err)
	}

	return &domain.Organization{
		Name:             orgName,
		OwnerUserID:      ownerUserID,
		APIKeyCipher:     apiKeyCipher,
		APIKeyHash:       apiKeyHash,
		ExternalIDCipher: externalIDCipher,
	}, nil
}

// GetOrg loads and decodes the record, or returns domain.ErrNotFound.
func (r *OrgRepository) GetOrg(ctx context.Context, orgName string) (*domain.Organization, error) {
	key := fmt.Sprintf(orgKeyTemplate, orgName)
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load organization record: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeOrg(orgName, raw)
}

// VerifyAPIKey checks the supplied key against the stored hash. An
// unknown organization and a wrong key are indistinguishable to the
// caller, defending against name enumeration.
func (r *OrgRepository) VerifyAPIKey(ctx context.Context, orgName, apiKey string) (*domain.Organization, error) {
	record, err := r.GetOrg(ctx, orgName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !r.hasher.Verify(apiKey, record.APIKeyHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return record, nil
}

// MarkValidated flips validation_status to 1, stamps the transition time,
// and attaches only the account fields the webhook actually supplied.
func (r *OrgRepository) MarkValidated(ctx context.Context, orgName string, update domain.ValidationUpdate) error {
	fields := map[string]interface{}{
		"validation_status":     "1",
		"validation_updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if update.AccountID != nil {
		fields["account_id"] = *update.AccountID
	}
	if update.AccountPartition != nil {
		fields["account_partition"] = *update.AccountPartition
	}
	if update.AccountTags != nil {
		tags, err := json.Marshal(update.AccountTags)
		if err != nil {
			return fmt.Errorf("failed to encode account tags: %w", err)
		}
		fields["account_tags"] = string(tags)
	}

	key := fmt.Sprintf(orgKeyTemplate, orgName)
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to mark organization validated: %w", err)
	}
	return nil
}

// ListOrgsForUser returns the sorted organization names owned by a user.
func (r *OrgRepository) ListOrgsForUser(ctx context.Context, userID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, fmt.Sprintf(userOrgKeyTemplate, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations for user: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// DecryptAPIKey recovers the plaintext API key for server-side use only.
func (r *OrgRepository) DecryptAPIKey(record *domain.Organization) (string, error) {
	plaintext, err := r.cipher.Decrypt(record.APIKeyCipher, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// DecryptExternalID recovers the plaintext external id for role assumption.
func (r *OrgRepository) DecryptExternalID(record *domain.Organization) (string, error) {
	plaintext, err := r.cipher.Decrypt(record.ExternalIDCipher, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func decodeOrg(orgName string, raw map[string]string) (*domain.Organization, error) {
	apiKeyCipher, err := base64.StdEncoding.DecodeString(raw["api_key_cipher"])
	if err != nil {
		return nil, fmt.Errorf("corrupt api_key_cipher for %s: %w", orgName, err)
	}
	externalIDCipher, err := base64.StdEncoding.DecodeString(raw["external_id_cipher"])
	if err != nil {
		return nil, fmt.Errorf("corrupt external_id_cipher for %s: %w", orgName, err)
	}

	record := &domain.Organization{
		Name:             orgName,
		OwnerUserID:      raw["owner_user_id"],
		APIKeyCipher:     apiKeyCipher,
		APIKeyHash:       raw["api_key_hash"],
		ExternalIDCipher: externalIDCipher,
		ValidationStatus: raw["validation_status"] == "1",
		AccountID:        raw["account_id"],
		AccountPartition: raw["account_partition"],
	}

	if ts := raw["validation_updated_at"]; ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("corrupt validation_updated_at for %s: %w", orgName, err)
		}
		record.ValidationUpdatedAt = &parsed
	}

	if tags := raw["account_tags"]; tags != "" {
		if err := json.Unmarshal([]byte(tags), &record.AccountTags); err != nil {
			return nil, fmt.Errorf("corrupt account_tags for %s: %w", orgName, err)
		}
	}

	return record, nil
}

var _ domain.OrganizationRepository = (*OrgRepository)(nil)
