package storage

import (
	"context"
	"fmt"

	"game-party/pkg/config"
)

// Storage provider constants
const (
	StorageProviderLocal = "local"
	StorageProviderMinIO = "minio"
	StorageProviderGCS   = "gcs"
)

// NewStorageProvider creates a storage provider based on configuration
func NewStorageProvider(ctx context.Context, cfg *config.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case StorageProviderLocal:
		return NewLocalProvider(cfg.LocalPath, cfg.LocalBaseURL)

	case StorageProviderMinIO:
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MinIO endpoint is required")
		}
		return NewMinIOProvider(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey,
			cfg.MinIOBucket, cfg.MinIOUseSSL, cfg.MinIOPublicEndpoint)

	case StorageProviderGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS bucket name is required")
		}
		return NewGCSProvider(ctx, cfg.GCSBucket)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
