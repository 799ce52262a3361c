package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig contains the settings needed to build an S3 client for AWS
// or an S3-compatible service (MinIO, Localstack).
type ClientConfig struct {
	// Endpoint overrides the S3 endpoint. Empty selects the AWS default
	// for the region.
	Endpoint string

	// Region is the AWS region. Required.
	Region string

	// AccessKeyID and SecretAccessKey select static credentials. When both
	// are empty the SDK's default credential chain applies (environment,
	// shared config, IAM role).
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle addresses buckets as path components instead of
	// subdomains. Required by most S3-compatible services.
	ForcePathStyle bool
}

// NewS3Client builds an S3 client from ClientConfig.
func NewS3Client(ctx context.Context, cfg ClientConfig) (*awss3.Client, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:               cfg.Endpoint,
						HostnameImmutable: true,
						Source:            aws.EndpointSourceCustom,
					}, nil
				},
			)))
	}

	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}
