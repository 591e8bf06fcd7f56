// internal/media/s3.go
// Package media resolves the playable source URL of feed items.
// Backend-signed URLs win; otherwise objects are presigned against
// S3-compatible storage, or addressed through a public bucket URL.
package media

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner issues time-limited GET URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// S3Presigner presigns object reads on AWS S3 or an S3-compatible service.
type S3Presigner struct {
	presign *s3.PresignClient // Presign client derived from the S3 client
}

// NewS3Presigner creates a presigner for S3-compatible storage.
// It supports both AWS S3 and S3-compatible services like MinIO.
// Parameters:
//   - endpoint: S3 service endpoint URL
//   - region: AWS region (or equivalent for S3-compatible services)
//   - accessKey: Access key for authentication
//   - secretKey: Secret key for authentication
//
// Returns:
//   - *S3Presigner: Initialized presigner
//   - error: Any error that occurred during initialization
func NewS3Presigner(ctx context.Context, endpoint, region, accessKey, secretKey string) (*S3Presigner, error) {
	// Load AWS configuration with custom endpoint and credentials
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing keeps bucket names out of the host for MinIO
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &S3Presigner{presign: s3.NewPresignClient(client)}, nil
}

// PresignGet generates a presigned GET URL for an object.
// Parameters:
//   - ctx: Context for the operation
//   - bucket: Bucket holding the object
//   - key: Object key in the bucket
//   - ttl: Duration until the presigned URL expires
//
// Returns:
//   - string: Presigned URL for reading
//   - error: Any error that occurred during URL generation
func (p *S3Presigner) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	res, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return res.URL, nil
}
