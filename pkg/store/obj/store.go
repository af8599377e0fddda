// Package obj is the S3-compatible object store adapter. One object per
// record under logs/<kind>/<YYYY-MM-DD>/<id>.json; whether an operation's
// records land here at all is decided by its R2 policy, outside this
// package. Works against AWS S3, Cloudflare R2, and MinIO (custom endpoint
// plus path-style addressing).
package obj

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aquilhq/actionlog/pkg/models"
)

// Config holds configuration for the object store.
type Config struct {
	// Bucket is the bucket name.
	Bucket string

	// Region is the AWS region (optional, SDK default when empty).
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible services.
	Endpoint string

	// KeyPrefix is prepended to all object keys. Should end with "/" if
	// non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (MinIO, LocalStack).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey override the SDK credential chain
	// when both are set (R2 tokens, MinIO root credentials).
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries is the per-call retry budget. 0 uses the SDK default.
	MaxRetries int
}

// Store is the S3-backed object adapter.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New creates an object store with an existing client.
func New(client *s3.Client, config Config) *Store {
	return &Store{
		client:    client,
		bucket:    config.Bucket,
		keyPrefix: config.KeyPrefix,
	}
}

// NewFromConfig creates an object store by building an S3 client from the
// configuration. This is the production constructor.
func NewFromConfig(ctx context.Context, config Config) (*Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("object store requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error

	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	if config.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(config.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

// fullKey returns the bucket key for an envelope key.
func (s *Store) fullKey(key string) string {
	return s.keyPrefix + key
}

// WriteLog archives the envelope as a JSON object.
func (s *Store) WriteLog(ctx context.Context, e *models.Envelope) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(e.ObjectKey())),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

// Exists reports whether an object is present for the envelope key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object: %w", err)
	}
	return true, nil
}

// ReadLog fetches and decodes an archived envelope.
func (s *Store) ReadLog(ctx context.Context, key string) (*models.Envelope, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrRecordNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object body: %w", err)
	}

	var e models.Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope at %s: %w", key, err)
	}
	return &e, nil
}

// Healthcheck verifies the bucket is reachable.
func (s *Store) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// isNotFoundError checks for S3 not-found conditions. The SDK surfaces
// these as typed API errors with these codes; HeadObject returns a bare
// 404 without a NoSuchKey code, hence the NotFound probe.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
