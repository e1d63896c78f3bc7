// Package localfs is a filesystem-backed blob store. Buckets map to
// directories under a fixed root; keys map to file paths below a bucket.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edgefleet/flotilla/pkg/blob"
)

const Scheme = "local"

type Store struct {
	root string
}

var _ blob.Store = (*Store)(nil)

// New constructs a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: failed to create root: %w", err)
	}

	return &Store{root: root}, nil
}

func (s *Store) Scheme() string {
	return Scheme
}

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte) error {
	path, err := s.pathFor(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("localfs: failed to create key directory: %w", err)
	}

	// Write-then-rename so a concurrent reader never observes a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("localfs: failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("localfs: failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localfs: failed to close staging file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("localfs: failed to publish blob: %w", err)
	}

	return nil
}

func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	path, err := s.pathFor(bucket, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", blob.ErrNotFound, bucket, key)
		}

		return nil, fmt.Errorf("localfs: failed to read blob: %w", err)
	}

	return data, nil
}

func (s *Store) pathFor(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("%w: bucket and key are required", blob.ErrInvalidKey)
	}

	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	base := filepath.Join(s.root, bucket)
	if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes bucket", blob.ErrInvalidKey, key)
	}

	return path, nil
}
