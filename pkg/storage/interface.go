package storage

import "context"

// Provider abstracts the object store holding generated assets (QR images).
type Provider interface {
	// UploadBytes writes data under path and returns the storage path
	UploadBytes(ctx context.Context, path string, data []byte, contentType string) (string, error)

	// Delete deletes an object from storage
	Delete(ctx context.Context, path string) error

	// GetPublicURL returns a URL clients can fetch the object from
	GetPublicURL(ctx context.Context, path string) (string, error)
}
