package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobops/jobops/internal/storage"
)

// Endpoint returns the effective mirror endpoint: the configured
// remote.endpoint when set, otherwise the one saved in local storage.
// An empty result means no mirror.
func (c *Config) Endpoint(ctx context.Context, kv storage.Backend) (string, error) {
	if c.Remote.Endpoint != "" {
		return c.Remote.Endpoint, nil
	}
	return SavedEndpoint(ctx, kv)
}

// SavedEndpoint reads the endpoint stored by SaveEndpoint.
func SavedEndpoint(ctx context.Context, kv storage.Backend) (string, error) {
	v, err := kv.Get(ctx, storage.KeyRemoteEndpoint)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read saved endpoint: %w", err)
	}
	return strings.TrimSpace(v), nil
}

// SaveEndpoint stores the endpoint. An empty url clears it.
func SaveEndpoint(ctx context.Context, kv storage.Backend, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return kv.Delete(ctx, storage.KeyRemoteEndpoint)
	}
	return kv.Set(ctx, storage.KeyRemoteEndpoint, url)
}
