// Package fields manages user-defined custom field definitions.
//
// Definitions are stored on their own, apart from the records. Removing a
// definition leaves any values already on records untouched.
package fields

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobops/jobops/internal/storage"
	"github.com/jobops/jobops/internal/types"
)

// ErrNotFound is returned by Remove for an unknown definition id.
var ErrNotFound = errors.New("custom field not found")

// Registry reads and writes definitions under the custom_fields key.
type Registry struct {
	kv     storage.Backend
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a Registry. logger may be nil.
func New(kv storage.Backend, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{kv: kv, logger: logger.Named("fields")}
}

// List returns the definitions in creation order. A missing or corrupt
// blob is an empty list.
func (r *Registry) List(ctx context.Context) []types.CustomFieldDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(ctx)
}

func (r *Registry) list(ctx context.Context) []types.CustomFieldDefinition {
	var defs []types.CustomFieldDefinition
	err := storage.LoadJSON(ctx, r.kv, storage.KeyCustomFields, &defs)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("custom field definitions unreadable, using none", zap.Error(err))
		}
		return []types.CustomFieldDefinition{}
	}
	if defs == nil {
		defs = []types.CustomFieldDefinition{}
	}
	return defs
}

// Add creates a definition with a fresh id.
func (r *Registry) Add(ctx context.Context, label string, typ types.FieldType) (types.CustomFieldDefinition, error) {
	def := types.CustomFieldDefinition{
		ID:    uuid.NewString(),
		Label: strings.TrimSpace(label),
		Type:  typ,
	}
	if def.Type == "" {
		def.Type = types.FieldText
	}
	if err := def.Validate(); err != nil {
		return types.CustomFieldDefinition{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	defs := append(r.list(ctx), def)
	if err := storage.SaveJSON(ctx, r.kv, storage.KeyCustomFields, defs); err != nil {
		return types.CustomFieldDefinition{}, fmt.Errorf("failed to save custom fields: %w", err)
	}
	return def, nil
}

// Remove deletes the definition with the given id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := r.list(ctx)
	out := defs[:0]
	found := false
	for _, d := range defs {
		if d.ID == id {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := storage.SaveJSON(ctx, r.kv, storage.KeyCustomFields, out); err != nil {
		return fmt.Errorf("failed to save custom fields: %w", err)
	}
	return nil
}

// Lookup finds a definition by id or, failing that, by label
// (case-insensitive).
func (r *Registry) Lookup(ctx context.Context, idOrLabel string) (types.CustomFieldDefinition, bool) {
	defs := r.List(ctx)
	for _, d := range defs {
		if d.ID == idOrLabel {
			return d, true
		}
	}
	for _, d := range defs {
		if strings.EqualFold(d.Label, idOrLabel) {
			return d, true
		}
	}
	return types.CustomFieldDefinition{}, false
}
