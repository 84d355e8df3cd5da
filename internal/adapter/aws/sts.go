// Package aws implements the cloud provider adapters: STS role
// assumption, workload stack management, and template URL generation.
package aws

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// STSAPI defines the STS operations used by the role assumer. This
// enables testing with mock implementations.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// RoleAssumer performs STS AssumeRole with the organization's external id
// as the anti-confused-deputy token.
type RoleAssumer struct {
	client STSAPI
	logger *slog.Logger
}

// NewRoleAssumer creates a role assumer from an AWS config.
func NewRoleAssumer(cfg aws.Config, logger *slog.Logger) *RoleAssumer {
	return NewRoleAssumerWithClient(sts.NewFromConfig(cfg), logger)
}

// NewRoleAssumerWithClient creates a role assumer with a provided STS
// client.
func NewRoleAssumerWithClient(client STSAPI, logger *slog.Logger) *RoleAssumer {
	return &RoleAssumer{client: client, logger: logger.With("component", "role_assumer")}
}

// AssumeRole exchanges the role ARN for temporary credentials. Provider
// failures are wrapped in domain.ErrUpstream; there is no internal retry,
// a failed assumption is reported to the caller immediately.
func (a *RoleAssumer) AssumeRole(ctx context.Context, input domain.AssumeRoleInput) (*domain.TemporaryCredentials, error) {
	resp, err := a.client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(input.RoleARN),
		RoleSessionName: aws.String(input.SessionName),
		ExternalId:      aws.String(input.ExternalID),
		DurationSeconds: aws.Int32(int32(input.Duration.Seconds())),
	})
	if err != nil {
		a.logger.Error("assume role failed", "role_arn", input.RoleARN, "error", err)
		return nil, fmt.Errorf("%w: assume role %s: %v", domain.ErrUpstream, input.RoleARN, err)
	}

	creds := resp.Credentials
	return &domain.TemporaryCredentials{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      creds.Expiration.UTC().Format(time.RFC3339),
	}, nil
}

var _ domain.RoleAssumer = (*RoleAssumer)(nil)
