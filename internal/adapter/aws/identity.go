package aws

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// IdentityAPI defines the STS operation used to resolve a caller
// identity. This enables testing with mock implementations.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// IdentityResolver answers GetCallerIdentity with caller-supplied
// temporary credentials, so each call builds its own STS client.
type IdentityResolver struct {
	logger *slog.Logger

	// newClient is swapped in tests.
	newClient func(creds domain.TemporaryCredentials) IdentityAPI
}

// NewIdentityResolver creates an identity resolver for the given region.
func NewIdentityResolver(region string, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{
		logger: logger.With("component", "identity_resolver"),
		newClient: func(creds domain.TemporaryCredentials) IdentityAPI {
			return sts.NewFromConfig(aws.Config{
				Region: region,
				Credentials: credentials.NewStaticCredentialsProvider(
					creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
				),
			})
		},
	}
}

// ResolveIdentity returns the principal behind the supplied credentials.
// STS rejects revoked or expired credentials, so a provider error means
// the credentials are not usable.
func (r *IdentityResolver) ResolveIdentity(ctx context.Context, creds domain.TemporaryCredentials) (*domain.CallerIdentity, error) {
	resp, err := r.newClient(creds).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		r.logger.Debug("get caller identity failed", "error", err)
		return nil, fmt.Errorf("get caller identity: %w", err)
	}
	return &domain.CallerIdentity{
		AccountID: aws.ToString(resp.Account),
		ARN:       aws.ToString(resp.Arn),
		UserID:    aws.ToString(resp.UserId),
	}, nil
}

var _ domain.IdentityResolver = (*IdentityResolver)(nil)
