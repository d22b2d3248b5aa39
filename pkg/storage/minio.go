package storage

import (
	"bytes"
	"context"
	"fmt"

	"game-party/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioProvider implements the Provider interface using MinIO
type minioProvider struct {
	client         *minio.Client
	bucket         string
	publicEndpoint string
	useSSL         bool
}

// NewMinIOProvider creates a new MinIO storage provider
func NewMinIOProvider(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicEndpoint string) (Provider, error) {
	// if publicEndpoint is empty, use the same as endpoint
	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	provider := &minioProvider{
		client:         client,
		bucket:         bucket,
		publicEndpoint: publicEndpoint,
		useSSL:         useSSL,
	}

	err = provider.ensureBucket(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	logger.Infof("MinIO provider initialized: endpoint=%s, bucket=%s", endpoint, bucket)
	return provider, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (m *minioProvider) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Infof("created MinIO bucket: %s", m.bucket)
	return nil
}

// UploadBytes writes data under path in the bucket
func (m *minioProvider) UploadBytes(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return path, nil
}

// Delete deletes an object from the bucket
func (m *minioProvider) Delete(ctx context.Context, path string) error {
	err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetPublicURL returns a browser-reachable URL for the object
func (m *minioProvider) GetPublicURL(ctx context.Context, path string) (string, error) {
	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, m.publicEndpoint, m.bucket, path), nil
}
