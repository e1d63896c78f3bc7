// Package blob moves serialized payloads that are too large for the command
// channel through a path-addressed object store.
package blob

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is one object store endpoint. Overwriting a key is legal and simply
// replaces what a later reader sees; blobs carry no versioning.
type Store interface {
	// Scheme identifies the locator scheme this store serves, e.g. "local".
	Scheme() string
	Upload(ctx context.Context, bucket, key string, data []byte) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}
