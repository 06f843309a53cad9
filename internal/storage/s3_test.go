package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestObjectKeyAndURL(t *testing.T) {
	s, err := NewS3Storage(S3Config{Bucket: "media", PublicURL: "http://localhost:9000/media/"})
	if err != nil {
		t.Fatalf("NewS3Storage() error: %v", err)
	}

	key := s.objectKey("/images/", "image/png", time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	if !strings.HasPrefix(key, "images/2026/03/09/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %q", key)
	}
	if got := s.URL(key); got != "http://localhost:9000/media/"+key {
		t.Errorf("URL() = %q", got)
	}
}

func TestURLWithoutPublicBase(t *testing.T) {
	s, _ := NewS3Storage(S3Config{Bucket: "media"})
	if got := s.URL("a.png"); got != "s3://media/a.png" {
		t.Errorf("URL() = %q", got)
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(S3Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestUploadBytesRejectsEmpty(t *testing.T) {
	s, _ := NewS3Storage(S3Config{Bucket: "media"})
	if _, err := s.UploadBytes(context.Background(), "images", nil, "image/png"); !errors.Is(err, ErrEmptyObject) {
		t.Errorf("expected ErrEmptyObject, got %v", err)
	}
}
