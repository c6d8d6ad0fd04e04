// Package objstore copies snapshot files to an S3-compatible bucket.
package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config describes the target bucket.
type Config struct {
	// Endpoint overrides the AWS endpoint, e.g. a MinIO address.
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string

	UsePathStyle bool
	// MaxAttempts per upload, including the first. Zero keeps the SDK default.
	MaxAttempts int
	Timeout     time.Duration
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts files into the configured bucket.
type Uploader struct {
	client  putter
	bucket  string
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// New builds an S3 client from cfg. Static credentials are used when an
// access key is set; otherwise the SDK's default chain applies.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objstore: bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// Many S3-compatible servers reject the SDK's default checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return newUploader(client, cfg, logger), nil
}

func newUploader(client putter, cfg Config, logger *slog.Logger) *Uploader {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: timeout,
		logger:  logger.With("component", "objstore"),
	}
}

// Upload stores the file at path under prefix/name.
func (u *Uploader) Upload(ctx context.Context, filePath, name string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("objstore: open %s: %w", filePath, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("objstore: stat %s: %w", filePath, err)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	key := u.Key(name)
	start := time.Now()
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("objstore: put %s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info("snapshot uploaded",
		"bucket", u.bucket,
		"object", key,
		"size_bytes", st.Size(),
		"elapsed", time.Since(start))
	return nil
}

// Key returns the object key used for name.
func (u *Uploader) Key(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}
