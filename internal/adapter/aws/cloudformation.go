package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

// CFNAPI defines the CloudFormation operations used by the stack client.
type CFNAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

var stackCapabilities = []types.Capability{
	types.CapabilityCapabilityNamedIam,
	types.CapabilityCapabilityIam,
}

// StackClient manages the per-organization workload stack in the
// customer account. Each call builds a CloudFormation client from the
// temporary credentials produced by a prior role assumption.
//
// CloudFormation reports a missing stack only through a ValidationError
// message; that string matching lives in isStackMissing and nowhere else.
type StackClient struct {
	region       string
	templateBody string
	logger       *slog.Logger

	// newClient is injectable for tests.
	newClient func(creds domain.TemporaryCredentials) CFNAPI
}

// NewStackClient creates a stack client for the given region and
// workload template body.
func NewStackClient(region, templateBody string, logger *slog.Logger) *StackClient {
	c := &StackClient{
		region:       region,
		templateBody: templateBody,
		logger:       logger.With("component", "stack_client"),
	}
	c.newClient = func(creds domain.TemporaryCredentials) CFNAPI {
		provider := credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
		return cloudformation.NewFromConfig(aws.Config{Region: region, Credentials: provider})
	}
	return c
}

// Exists reports whether the stack is deployed.
func (c *StackClient) Exists(ctx context.Context, creds domain.TemporaryCredentials, stackName string) (bool, error) {
	_, err := c.newClient(creds).DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: describe stack %s: %v", domain.ErrUpstream, stackName, err)
	}
	return true, nil
}

// Describe returns the stack status and outputs, or nil when the stack
// does not exist.
func (c *StackClient) Describe(ctx context.Context, creds domain.TemporaryCredentials, stackName string) (*domain.WorkloadStack, error) {
	resp, err := c.newClient(creds).DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: describe stack %s: %v", domain.ErrUpstream, stackName, err)
	}
	if len(resp.Stacks) == 0 {
		return nil, nil
	}

	stack := resp.Stacks[0]
	outputs := make(map[string]string, len(stack.Outputs))
	for _, out := range stack.Outputs {
		outputs[aws.ToString(out.OutputKey)] = aws.ToString(out.OutputValue)
	}

	var lastUpdated *time.Time
	switch {
	case stack.LastUpdatedTime != nil:
		t := stack.LastUpdatedTime.UTC()
		lastUpdated = &t
	case stack.CreationTime != nil:
		t := stack.CreationTime.UTC()
		lastUpdated = &t
	}

	return &domain.WorkloadStack{
		Name:        aws.ToString(stack.StackName),
		ID:          aws.ToString(stack.StackId),
		Status:      string(stack.StackStatus),
		Outputs:     outputs,
		LastUpdated: lastUpdated,
	}, nil
}

// Create starts stack creation and returns the stack id.
func (c *StackClient) Create(ctx context.Context, creds domain.TemporaryCredentials, stackName string, parameters map[string]string) (string, error) {
	resp, err := c.newClient(creds).CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(c.templateBody),
		Parameters:   toParameters(parameters),
		Capabilities: stackCapabilities,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create stack %s: %v", domain.ErrUpstream, stackName, err)
	}
	return aws.ToString(resp.StackId), nil
}

// Update starts a stack update. The second return value is false when
// the provider reported there was nothing to change.
func (c *StackClient) Update(ctx context.Context, creds domain.TemporaryCredentials, stackName string, parameters map[string]string) (string, bool, error) {
	resp, err := c.newClient(creds).UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(stackName),
		TemplateBody: aws.String(c.templateBody),
		Parameters:   toParameters(parameters),
		Capabilities: stackCapabilities,
	})
	if err != nil {
		if isNoUpdates(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: update stack %s: %v", domain.ErrUpstream, stackName, err)
	}
	return aws.ToString(resp.StackId), true, nil
}

// Delete starts stack deletion.
func (c *StackClient) Delete(ctx context.Context, creds domain.TemporaryCredentials, stackName string) error {
	_, err := c.newClient(creds).DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return fmt.Errorf("%w: delete stack %s: %v", domain.ErrUpstream, stackName, err)
	}
	return nil
}

func toParameters(parameters map[string]string) []types.Parameter {
	result := make([]types.Parameter, 0, len(parameters))
	for key, value := range parameters {
		if value == "" {
			continue
		}
		result = append(result, types.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}
	return result
}

// isStackMissing recognizes the provider's "stack does not exist"
// ValidationError. CloudFormation has no dedicated error type for it.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// isNoUpdates recognizes the provider's "No updates are to be performed"
// ValidationError on UpdateStack.
func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" && strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}

var _ domain.StackClient = (*StackClient)(nil)
