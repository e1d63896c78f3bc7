// Package ocireg is a blob store backed by an OCI registry via ORAS. Buckets
// map to repositories, keys map to tags; each payload travels as the single
// layer of a packed artifact manifest.
package ocireg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/edgefleet/flotilla/pkg/blob"
)

const (
	Scheme = "oci"

	artifactType  = "application/vnd.flotilla.parameters"
	layerMedia    = "application/vnd.flotilla.parameters.v1+cbor"
	tagSeparator  = "-"
	maxTagLength  = 128
)

type Store struct {
	registry  string
	plainHTTP bool
	client    remote.Client
}

var _ blob.Store = (*Store)(nil)

// New constructs a store addressing repositories under the given registry
// host. Credentials are optional; anonymous access is used when empty.
func New(registry, username, password string, plainHTTP bool) (*Store, error) {
	if registry == "" {
		return nil, errors.New("ocireg: registry host is required")
	}

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if username != "" {
		client.Credential = auth.StaticCredential(registry, auth.Credential{
			Username: username,
			Password: password,
		})
	}

	return &Store{
		registry:  registry,
		plainHTTP: plainHTTP,
		client:    client,
	}, nil
}

func (s *Store) Scheme() string {
	return Scheme
}

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte) error {
	repo, tag, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}

	staging := memory.New()

	layerDesc, err := oras.PushBytes(ctx, staging, layerMedia, data)
	if err != nil {
		return fmt.Errorf("ocireg: failed to stage payload: %w", err)
	}

	manifestDesc, err := oras.PackManifest(ctx, staging, oras.PackManifestVersion1_1, artifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layerDesc},
	})
	if err != nil {
		return fmt.Errorf("ocireg: failed to pack manifest: %w", err)
	}

	if err := staging.Tag(ctx, manifestDesc, tag); err != nil {
		return fmt.Errorf("ocireg: failed to tag staged manifest: %w", err)
	}

	if _, err := oras.Copy(ctx, staging, tag, repo, tag, oras.DefaultCopyOptions); err != nil {
		return fmt.Errorf("ocireg: failed to push %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	repo, tag, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}

	staging := memory.New()

	manifestDesc, err := oras.Copy(ctx, repo, tag, staging, tag, oras.DefaultCopyOptions)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", blob.ErrNotFound, bucket, key)
		}

		return nil, fmt.Errorf("ocireg: failed to pull %s/%s: %w", bucket, key, err)
	}

	manifestData, err := content.FetchAll(ctx, staging, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("ocireg: failed to read manifest: %w", err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("ocireg: failed to decode manifest: %w", err)
	}
	if len(manifest.Layers) != 1 {
		return nil, fmt.Errorf("ocireg: expected single payload layer, got %d", len(manifest.Layers))
	}

	data, err := content.FetchAll(ctx, staging, manifest.Layers[0])
	if err != nil {
		return nil, fmt.Errorf("ocireg: failed to read payload layer: %w", err)
	}

	return data, nil
}

func (s *Store) resolve(bucket, key string) (*remote.Repository, string, error) {
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("%w: bucket and key are required", blob.ErrInvalidKey)
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", s.registry, bucket))
	if err != nil {
		return nil, "", fmt.Errorf("ocireg: invalid repository %q: %w", bucket, err)
	}
	repo.PlainHTTP = s.plainHTTP
	repo.Client = s.client

	tag, err := tagForKey(key)
	if err != nil {
		return nil, "", err
	}

	return repo, tag, nil
}

// tagForKey maps a slash-separated blob key onto a valid OCI tag.
func tagForKey(key string) (string, error) {
	tag := strings.ReplaceAll(key, "/", tagSeparator)
	if len(tag) > maxTagLength {
		return "", fmt.Errorf("%w: %q exceeds tag length limit", blob.ErrInvalidKey, key)
	}
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return "", fmt.Errorf("%w: %q contains %q", blob.ErrInvalidKey, key, r)
		}
	}

	return tag, nil
}
