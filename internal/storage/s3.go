// Package storage keeps generated post images in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrEmptyObject is returned when there is nothing to upload
var ErrEmptyObject = errors.New("empty object")

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Endpoint        string // e.g. "http://localhost:9000" for MinIO
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	PublicURL       string // base URL the bucket is served from
}

// S3Storage stores post media
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
	clock     func() time.Time
}

// NewS3Storage creates a new S3 storage client
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true, // required for MinIO
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Storage{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		clock:     time.Now,
	}, nil
}

// UploadOutput describes a stored object
type UploadOutput struct {
	Key        string `json:"key"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
	UploadedAt time.Time
}

// UploadBytes stores data under prefix/<yyyy/mm/dd>/<uuid><ext> and returns its public URL
func (s *S3Storage) UploadBytes(ctx context.Context, prefix string, data []byte, contentType string) (*UploadOutput, error) {
	if len(data) == 0 {
		return nil, ErrEmptyObject
	}

	now := s.clock().UTC()
	key := s.objectKey(prefix, contentType, now)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to s3: %w", err)
	}

	return &UploadOutput{
		Key:        key,
		URL:        s.URL(key),
		Size:       int64(len(data)),
		UploadedAt: now,
	}, nil
}

// Delete removes an object
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting from s3: %w", err)
	}
	return nil
}

// URL returns the public URL of a key
func (s *S3Storage) URL(key string) string {
	if s.publicURL == "" {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key)
	}
	return s.publicURL + "/" + key
}

func (s *S3Storage) objectKey(prefix, contentType string, at time.Time) string {
	prefix = strings.Trim(prefix, "/")
	name := at.Format("2006/01/02") + "/" + uuid.New().String() + extensionFor(contentType)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
