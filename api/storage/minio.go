package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ObjectStorage keeps uploaded reference images in a MinIO bucket and
// hands out the public URLs the provider fetches them from.
type ObjectStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	BaseURL   string // public URL prefix the provider can reach, e.g. https://cdn.example.com
	UseSSL    bool
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info("Created bucket", zap.String("bucket", cfg.Bucket))
	}

	return &ObjectStorage{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}, nil
}

// Put stores one object and returns its public URL.
func (s *ObjectStorage) Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}

	s.logger.Info("Stored object",
		zap.String("bucket", s.bucket),
		zap.String("object", objectName),
		zap.Int64("size", size),
	)

	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, objectName), nil
}

func (s *ObjectStorage) Remove(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}
