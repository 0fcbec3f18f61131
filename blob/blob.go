// Package blob stores photo image bytes behind a small S3-like interface.
//
// Three backends are provided: the local filesystem (default), S3 or any
// S3-compatible service such as MinIO, and process memory for tests. Photo
// rows keep only the object key; the gateway resolves display URLs through
// PresignURL.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory represents an in-memory implementation used in tests.
	DriverMemory Driver = "memory"
)

// Errors returned by blob stores.
var (
	ErrNotFound    = errors.New("blob: not found")
	ErrExists      = errors.New("blob: already exists")
	ErrInvalidKey  = errors.New("blob: invalid key")
	ErrUnsupported = errors.New("blob: unsupported operation")
)

// DefaultURLExpiry is the lifetime of presigned URLs when none is given.
const DefaultURLExpiry = 15 * time.Minute

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions holds options for generating a URL to a blob.
type SignedURLOptions struct {
	// Expiry defaults to DefaultURLExpiry. Ignored by backends that serve
	// blobs from a public base URL.
	Expiry time.Duration
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is implemented by every blob backend. Put never overwrites an
// existing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// publicURL joins a base URL and a key, or reports ErrUnsupported when no
// base is configured.
func publicURL(base, key string) (string, error) {
	if base == "" {
		return "", ErrUnsupported
	}
	if base[len(base)-1] == '/' {
		return base + key, nil
	}
	return base + "/" + key, nil
}
