// Package s3 implements a remote durable tier that keeps the cache blob in
// a single S3 object.
package s3

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/caseprep/caseprep/pkg/errors"
)

// Config represents S3 store configuration.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	MaxRetries      int    `yaml:"max_retries"`
}

// Store reads and writes the cache blob as one S3 object. Transport
// failures classify as network errors so the statistics recorder charges
// them to the right counter.
type Store struct {
	client *s3.Client
	bucket string
	key    string
	logger *zap.Logger
}

// New creates an S3 store. Credentials fall back to the default AWS chain
// unless static keys are configured.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	if cfg == nil || cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New(errors.ErrCodeStorageRead, "s3 store requires bucket and key").
			WithComponent("s3store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(maxRetries),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, "load AWS config", err).
			WithComponent("s3store")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Store{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
		logger: logger,
	}, nil
}

// Read fetches the blob object, or found=false when it does not exist.
func (s *Store) Read(ctx context.Context) ([]byte, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.ErrCodeNetwork, "get blob object", err).
			WithComponent("s3store").WithOperation("read")
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeNetwork, "read blob body", err).
			WithComponent("s3store").WithOperation("read")
	}
	return data, true, nil
}

// Write replaces the blob object.
func (s *Store) Write(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, "put blob object", err).
			WithComponent("s3store").WithOperation("write")
	}
	return nil
}

// Remove deletes the blob object. Deleting an absent object succeeds.
func (s *Store) Remove(ctx context.Context) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, "delete blob object", err).
			WithComponent("s3store").WithOperation("remove")
	}
	return nil
}
