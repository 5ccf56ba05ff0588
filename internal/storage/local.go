package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps objects on the local filesystem, for development and
// single-node deployments.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates the base directory and returns the backend.
func NewLocalStorage(configuration Config) (*LocalStorage, error) {
	basePath := configuration.BasePath
	if basePath == "" {
		basePath = "./data/uploads"
	}
	if mkdirErr := os.MkdirAll(basePath, 0o755); mkdirErr != nil {
		return nil, fmt.Errorf("storage.local.init: %w", mkdirErr)
	}
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(configuration.BaseURL, "/"),
	}, nil
}

// Save writes the object under basePath, creating parent directories.
func (local *LocalStorage) Save(ctx context.Context, key string, reader io.Reader, contentType string) error {
	fullPath := filepath.Join(local.basePath, filepath.FromSlash(key))
	if mkdirErr := os.MkdirAll(filepath.Dir(fullPath), 0o755); mkdirErr != nil {
		return fmt.Errorf("storage.local.save: %w", mkdirErr)
	}
	file, createErr := os.Create(fullPath)
	if createErr != nil {
		return fmt.Errorf("storage.local.save: %w", createErr)
	}
	defer func() { _ = file.Close() }()
	if _, copyErr := io.Copy(file, reader); copyErr != nil {
		return fmt.Errorf("storage.local.save: %w", copyErr)
	}
	return nil
}

// Open returns the stored object for reading.
func (local *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	file, openErr := os.Open(filepath.Join(local.basePath, filepath.FromSlash(key)))
	if openErr != nil {
		return nil, fmt.Errorf("storage.local.open: %w", openErr)
	}
	return file, nil
}

// Delete removes the object; a missing object is ignored.
func (local *LocalStorage) Delete(ctx context.Context, key string) error {
	removeErr := os.Remove(filepath.Join(local.basePath, filepath.FromSlash(key)))
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return fmt.Errorf("storage.local.delete: %w", removeErr)
	}
	return nil
}

// PublicURL maps the key under the configured base URL, defaulting to the
// server's own /files route.
func (local *LocalStorage) PublicURL(key string) string {
	if local.baseURL == "" {
		return "/files/" + key
	}
	return local.baseURL + "/" + key
}
