// Package s3store reads and writes whole objects on S3-compatible storage
// (AWS S3 or MinIO). It backs the s3 source and the s3 sink.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	pconfig "phenoetl/internal/config"
)

// Config holds explicit construction parameters. Credentials come from the
// default chain (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, profiles, IMDS).
type Config struct {
	Region    string
	Bucket    string
	Endpoint  string // optional; custom endpoint such as MinIO
	PathStyle bool

	// HTTPClient overrides the transport; tests use it to fake S3.
	HTTPClient *http.Client

	// LoadOptions are appended to the default config loader options.
	LoadOptions []func(*config.LoadOptions) error
}

// Store is a single-bucket object store.
type Store struct {
	client *s3.Client
	bucket string
}

// New creates a store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, cfg.LoadOptions...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		// MinIO and older gateways reject the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the bucket the store is bound to.
func (s *Store) Bucket() string { return s.bucket }

// Get opens an object for reading. The caller closes the body.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("s3: get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// Put uploads body under key, replacing any existing object.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3: put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// ConfigFor maps a configured object location onto store parameters.
func ConfigFor(loc pconfig.S3Location) Config {
	return Config{
		Region:    loc.Region,
		Bucket:    loc.Bucket,
		Endpoint:  loc.Endpoint,
		PathStyle: loc.PathStyle,
	}
}
