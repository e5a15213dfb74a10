// Package awsclient resolves the shared aws.Config used by the S3 archive,
// the DynamoDB report index and the CloudWatch publishers.
package awsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

var (
	ErrRegionRequired       = errors.New("aws region is required")
	ErrIncompleteStaticKeys = errors.New("both access key id and secret access key are required for static credentials")
)

// Options selects the region, an optional endpoint override (LocalStack,
// MinIO) and optional static keys.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Load builds an aws.Config. Without static keys the SDK default chain
// (environment, shared profile, instance role) supplies credentials.
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		return aws.Config{}, ErrRegionRequired
	}

	keyID := strings.TrimSpace(opts.AccessKeyID)
	secret := strings.TrimSpace(opts.SecretAccessKey)
	if (keyID == "") != (secret == "") {
		return aws.Config{}, ErrIncompleteStaticKeys
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if keyID != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}

	if endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/"); endpoint != "" {
		cfg.BaseEndpoint = aws.String(endpoint)
	}

	return cfg, nil
}
