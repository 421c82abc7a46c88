// Package watch keeps the syncer's mirror in step with the configured
// endpoint while a long-running process is up.
//
// Two things can change the endpoint: an edit to the config file (seen by
// ConfigWatcher) and an explicit save through the API or CLI. Both go
// through Endpoints, which rebuilds the mirror only when the effective
// URL actually changes.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/config"
	"github.com/jobops/jobops/internal/remote"
	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/syncer"
)

// MirrorSetter receives mirror changes. *syncer.Syncer implements it.
type MirrorSetter interface {
	SetMirror(m syncer.Mirror)
}

// Factory builds a mirror for an endpoint URL.
type Factory func(url string) (syncer.Mirror, error)

// RemoteFactory returns a Factory producing remote clients with timeout.
func RemoteFactory(timeout time.Duration) Factory {
	return func(url string) (syncer.Mirror, error) {
		c, err := remote.New(url, remote.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Endpoints resolves the effective endpoint and swaps the mirror.
type Endpoints struct {
	kv      storage.Backend
	target  MirrorSetter
	factory Factory
	logger  *zap.Logger

	mu         sync.Mutex
	configured string // remote.endpoint from the config file
	current    string // URL the target's mirror was built for
}

// NewEndpoints creates an Endpoints for target. configured is the
// remote.endpoint value currently in effect.
func NewEndpoints(kv storage.Backend, target MirrorSetter, configured string, factory Factory, logger *zap.Logger) *Endpoints {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Endpoints{
		kv:         kv,
		target:     target,
		factory:    factory,
		logger:     logger.Named("endpoint"),
		configured: configured,
	}
}

// Endpoint returns the effective endpoint, "" for none.
func (e *Endpoints) Endpoint(ctx context.Context) (string, error) {
	e.mu.Lock()
	configured := e.configured
	e.mu.Unlock()
	cfg := config.Config{Remote: config.RemoteConfig{Endpoint: configured}}
	return cfg.Endpoint(ctx, e.kv)
}

// SetEndpoint validates and saves url, then applies it. An empty url
// clears the saved endpoint. A configured remote.endpoint still takes
// precedence over the saved one.
func (e *Endpoints) SetEndpoint(ctx context.Context, url string) error {
	if url != "" {
		if _, err := e.factory(url); err != nil {
			return err
		}
	}
	if err := config.SaveEndpoint(ctx, e.kv, url); err != nil {
		return fmt.Errorf("failed to save endpoint: %w", err)
	}
	_, err := e.Apply(ctx)
	return err
}

// SetConfigured records a new remote.endpoint value and applies it.
func (e *Endpoints) SetConfigured(ctx context.Context, url string) (bool, error) {
	e.mu.Lock()
	e.configured = url
	e.mu.Unlock()
	return e.Apply(ctx)
}

// Apply rebuilds the target's mirror if the effective endpoint changed.
// It reports whether a swap happened.
func (e *Endpoints) Apply(ctx context.Context) (bool, error) {
	url, err := e.Endpoint(ctx)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if url == e.current {
		return false, nil
	}

	if url == "" {
		e.target.SetMirror(nil)
		e.current = ""
		e.logger.Info("mirror disabled")
		return true, nil
	}
	m, err := e.factory(url)
	if err != nil {
		return false, err
	}
	e.target.SetMirror(m)
	e.current = url
	e.logger.Info("mirror switched", zap.String("endpoint", url))
	return true, nil
}

// Current returns the URL the active mirror was built for.
func (e *Endpoints) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
