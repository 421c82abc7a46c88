// Package storage is the local durable key-value store.
//
// Every value is a string, normally a JSON document. The syncer owns the
// jobs key; the other keys belong to the packages named beside them.
//
// Backends:
//   - sqlite: a single-file database under the data directory (default)
//   - redis: a shared Redis instance, keys namespaced with a prefix
//   - memory: process-local, for tests and --ephemeral runs
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by jobops.
const (
	KeyJobs           = "jobs"            // syncer
	KeyCustomFields   = "custom_fields"   // fields
	KeyRemoteEndpoint = "remote_endpoint" // config
	KeyDailyBriefing  = "daily_briefing"  // assistant
	KeyChatHistory    = "chat_history"    // assistant
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("key not found")

	// ErrCorrupt is returned by LoadJSON when a stored value does not decode.
	ErrCorrupt = errors.New("stored value is corrupt")

	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Backend is a string-valued key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// LoadJSON decodes the value under key into v. A missing key yields
// ErrNotFound and a malformed value yields ErrCorrupt.
func LoadJSON(ctx context.Context, b Backend, key string, v any) error {
	raw, err := b.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// SaveJSON encodes v and replaces the value under key.
func SaveJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return b.Set(ctx, key, string(data))
}

// Config selects and configures a backend.
type Config struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(cfg.Path)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}
