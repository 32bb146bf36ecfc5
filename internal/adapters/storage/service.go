// Package storage keeps order snapshots in S3-compatible object storage as
// evidence for reconciling partial failures.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore is the subset of object storage the archive uses.
type ObjectStore interface {
	// PutObject stores the object under the exact key given.
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) error

	// LatestKey returns the lexically greatest key under prefix, or "" if
	// there is none.
	LatestKey(ctx context.Context, bucket, prefix string) (string, error)

	// GenerateDownloadURL creates a presigned URL for downloading a file.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketOrderSnapshots() string
	IsMinIOEnabled() bool
}
