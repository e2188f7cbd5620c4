package flagstore

import (
	"context"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// Store is the backing store for flag definitions.
// Fetch and FetchAll are the read side consumed by the evaluation cache; the
// remaining methods are the write side used by administrative tooling.
type Store interface {
	// Fetch returns a snapshot of one flag with its active overrides merged in.
	// It returns feature.ErrFlagNotFound when the flag does not exist.
	Fetch(ctx context.Context, key string) (*feature.Flag, error)

	// FetchAll returns snapshots of every flag.
	FetchAll(ctx context.Context) ([]*feature.Flag, error)

	// List returns all flags, optionally filtered by tags.
	List(ctx context.Context, tags ...string) ([]*feature.Flag, error)

	// Create stores a new flag, generating its salt when empty.
	Create(ctx context.Context, flag *feature.Flag) error

	// Update replaces an existing flag definition. The salt cannot change.
	Update(ctx context.Context, flag *feature.Flag) error

	// Delete removes a flag and its overrides.
	Delete(ctx context.Context, key string) error

	Disabler

	// Archive archives a flag, which disables it for every caller.
	Archive(ctx context.Context, key string) error

	// SetOverride creates or replaces an override.
	SetOverride(ctx context.Context, o feature.Override) error

	// DeleteOverride removes an override.
	DeleteOverride(ctx context.Context, key string, scope feature.Scope, scopeID string) error

	// Close releases any resources used by the store.
	Close() error
}

// Disabler flips the global enabled switch of a flag.
type Disabler interface {
	SetEnabled(ctx context.Context, key string, enabled bool) error
}
