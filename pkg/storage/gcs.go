package storage

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
)

// gcsProvider implements the Provider interface using Google Cloud Storage
type gcsProvider struct {
	client *gcs.Client
	bucket string
}

// NewGCSProvider creates a new GCS storage provider
func NewGCSProvider(ctx context.Context, bucket string) (Provider, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &gcsProvider{
		client: client,
		bucket: bucket,
	}, nil
}

// UploadBytes writes data under path in the bucket
func (g *gcsProvider) UploadBytes(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	writer := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}
	return path, nil
}

// Delete deletes an object from the bucket
func (g *gcsProvider) Delete(ctx context.Context, path string) error {
	err := g.client.Bucket(g.bucket).Object(path).Delete(ctx)
	if err != nil && err != gcs.ErrObjectNotExist {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetPublicURL returns the public URL for the object
func (g *gcsProvider) GetPublicURL(ctx context.Context, path string) (string, error) {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, path), nil
}
