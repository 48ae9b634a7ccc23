// Package objectstore holds the object store backends partitions are
// published to: a local directory tree and S3.
package objectstore

import (
	"context"
	"fmt"

	"github.com/couchcryptid/weather-history-etl/internal/config"
)

// Store is a flat key/value object store with prefix listing. Keys use "/"
// separators regardless of backend.
type Store interface {
	// Put replaces the object at exactly key. Readers never observe a
	// partially written object.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the object at key, or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// URI returns the address the query engine reads key (or a glob) from.
	URI(key string) string
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.Root)
	case "s3":
		client, err := NewS3Client(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
