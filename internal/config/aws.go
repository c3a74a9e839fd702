package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockMaxAttempts matches the standard retry mode used for Bedrock calls.
const bedrockMaxAttempts = 5

// AWSConfig builds the AWS SDK configuration. Static Bedrock IAM keys are used
// when set, otherwise the default credential chain.
func (c Config) AWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.AWSRegion),
		awsconfig.WithRetryMaxAttempts(bedrockMaxAttempts),
	}
	if c.BedrockAccessKey != "" && c.BedrockSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.BedrockAccessKey, c.BedrockSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewBedrockRuntime creates a Bedrock runtime client shared by the embedder and the LLM.
func (c Config) NewBedrockRuntime(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := c.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
