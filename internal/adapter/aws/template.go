package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// TemplatePresigner generates time-limited GET URLs for the onboarding
// CloudFormation template stored in S3.
type TemplatePresigner struct {
	presign *s3.PresignClient
}

// NewTemplatePresigner creates a presigner from an AWS config.
func NewTemplatePresigner(cfg aws.Config) *TemplatePresigner {
	return &TemplatePresigner{presign: s3.NewPresignClient(s3.NewFromConfig(cfg))}
}

// PresignTemplateURL returns a pre-signed GET URL for the template object.
func (p *TemplatePresigner) PresignTemplateURL(ctx context.Context, bucket, key string, expiresIn time.Duration) (string, error) {
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("failed to presign template url: %w", err)
	}
	return req.URL, nil
}
