package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/straye-as/production-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no object is stored under a key
var ErrNotFound = errors.New("stored object not found")

// ErrInvalidKey is returned for keys that are empty or escape the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// Object describes a stored object
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Storage keeps generated files such as report workbooks. Objects are addressed
// by slash separated keys; uploading to an existing key replaces it.
type Storage interface {
	Upload(ctx context.Context, key string, contentType string, data io.Reader) (string, int64, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// NewStorage picks the backend named by cfg.Mode: "local" or "azure" ("cloud" is an alias)
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch strings.ToLower(cfg.Mode) {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath)
	case "azure", "cloud":
		if cfg.CloudConnectionString == "" {
			return nil, errors.New("azure storage needs a connection string")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	}
	return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
}

// CleanKey normalises a key and rejects keys that are empty or leave the root
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
