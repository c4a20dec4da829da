// Package storage persists attachment bytes to object storage. The pipeline
// only needs a stable URL back; everything else about the blob layout is an
// implementation detail of this package.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"loan-intake-go/internal/config"
)

// BlobStore stores attachment bytes and returns a durable URL.
type BlobStore interface {
	Store(ctx context.Context, dealID, fileName string, data []byte, mimeType string) (string, error)
}

// MinioStore implements BlobStore on a MinIO (or S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	config *config.StorageConfig
}

func NewMinioStore(cfg *config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Store uploads one attachment under deals/<dealID>/<timestamp>-<fileName>
// and returns its public URL.
func (s *MinioStore) Store(ctx context.Context, dealID, fileName string, data []byte, mimeType string) (string, error) {
	objectName := fmt.Sprintf("deals/%s/%d-%s", dealID, time.Now().UnixNano(), fileName)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", fileName, err)
	}

	return s.publicURL(objectName), nil
}

func (s *MinioStore) publicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}
