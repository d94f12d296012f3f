package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/sma-docs-api/pkg/config"
)

// ErrPathEscape signals a key that resolves outside the storage root.
var ErrPathEscape = errors.New("storage key escapes root")

// RemoteStore mirrors folders and files kept outside the database.
// Deleting something that no longer exists is not an error.
type RemoteStore interface {
	DeletePrefix(ctx context.Context, prefix string) error
	Delete(ctx context.Context, key string) error
}

// New selects the store configured for the environment.
func New(ctx context.Context, cfg config.StorageConfig) (RemoteStore, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.LocalRoot)
	case config.StorageDriverGCS:
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
