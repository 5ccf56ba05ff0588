package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Backend names accepted in the configuration.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendR2    = "r2"
)

// ErrUnsupportedBackend indicates the configured backend name is unknown.
var ErrUnsupportedBackend = errors.New("storage.unsupported_backend")

// ObjectStorage stores uploaded images under opaque keys and hands back
// public URLs. Implementations: local filesystem, S3, Cloudflare R2.
type ObjectStorage interface {
	// Save writes the object under the key, overwriting any previous object.
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Open returns the object contents for reading.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object; deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL under which the object is served.
	PublicURL(key string) string
}

// Config selects and parameterizes the storage backend.
type Config struct {
	Backend   string // local, s3, r2
	BasePath  string // local: directory objects are written under
	BaseURL   string // public URL prefix; local default is /files
	Bucket    string // s3/r2
	Region    string // s3
	Endpoint  string // r2, or a custom S3-compatible endpoint
	AccessKey string // s3/r2
	SecretKey string // s3/r2
}

// New builds the configured backend. R2 is S3-compatible and shares the S3
// driver, differing only in endpoint and addressing style.
func New(configuration Config) (ObjectStorage, error) {
	switch configuration.Backend {
	case BackendLocal, "":
		return NewLocalStorage(configuration)
	case BackendS3, BackendR2:
		return NewS3Storage(configuration)
	default:
		return nil, fmt.Errorf("storage.new: %q: %w", configuration.Backend, ErrUnsupportedBackend)
	}
}
