package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalProvider implements storage on the local filesystem
type LocalProvider struct {
	basePath string
	baseURL  string // for serving files over HTTP
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	err := os.MkdirAll(basePath, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalProvider{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

// UploadBytes writes data under path on the local filesystem
func (l *LocalProvider) UploadBytes(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(l.basePath, path)

	err := os.MkdirAll(filepath.Dir(fullPath), 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	err = os.WriteFile(fullPath, data, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// Delete deletes a file from the local filesystem
func (l *LocalProvider) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(l.basePath, path)
	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetPublicURL returns a direct URL for the file
func (l *LocalProvider) GetPublicURL(ctx context.Context, path string) (string, error) {
	return fmt.Sprintf("%s/%s", l.baseURL, path), nil
}
