// AngelaMos | 2026
// store.go

package media

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wealthsupernova/supernova/internal/config"
)

const imageCacheControl = "max-age=3600"

type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ObjectStore is where uploaded images end up. S3Store is the production
// implementation.
type ObjectStore interface {
	Put(ctx context.Context, obj Object) error
	PublicURL(key string) string
}

// S3API is the subset of *s3.Client the store calls.
type S3API interface {
	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
	HeadBucket(
		ctx context.Context,
		params *s3.HeadBucketInput,
		optFns ...func(*s3.Options),
	) (*s3.HeadBucketOutput, error)
}

type S3Store struct {
	client S3API
	cfg    config.StorageConfig
}

// NewS3Client builds a client for an S3-compatible endpoint using static
// credentials. An empty endpoint falls back to AWS itself.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func NewS3Store(client S3API, cfg config.StorageConfig) *S3Store {
	return &S3Store{client: client, cfg: cfg}
}

func (s *S3Store) Put(ctx context.Context, obj Object) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(obj.Key),
		Body:          obj.Body,
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		CacheControl:  aws.String(imageCacheControl),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", obj.Key, err)
	}
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	return s.cfg.PublicURL(key)
}

// Ping checks that the bucket exists and is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	return nil
}
