package flagstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// MemoryStore is an in-memory Store.
// It's useful for testing, single-process deployments and flags loaded from a file.
type MemoryStore struct {
	flags map[string]*feature.Flag
	clock clock.Clock
	mu    sync.RWMutex
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for timestamps and override expiry.
func WithClock(c clock.Clock) MemoryOption {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFlags seeds the store. Flags without a salt get one generated.
func WithFlags(flags ...*feature.Flag) MemoryOption {
	return func(s *MemoryStore) {
		for _, f := range flags {
			if f != nil {
				s.flags[f.Key] = f
			}
		}
	}
}

// NewMemoryStore creates a new in-memory flag store.
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	s := &MemoryStore{
		flags: make(map[string]*feature.Flag),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Seeded flags go through the same preparation as Create.
	seeded := s.flags
	s.flags = make(map[string]*feature.Flag, len(seeded))
	now := s.clock.Now()
	for key, f := range seeded {
		prepared, err := prepareCreate(f, now)
		if err != nil {
			return nil, errors.Join(err, errors.New("seed flag "+key))
		}
		if !f.CreatedAt.IsZero() {
			prepared.CreatedAt = f.CreatedAt
		}
		if f.Version > 0 {
			prepared.Version = f.Version
		}
		s.flags[key] = prepared
	}

	return s, nil
}

// Fetch returns a copy of the flag with expired overrides removed.
func (s *MemoryStore) Fetch(ctx context.Context, key string) (*feature.Flag, error) {
	s.mu.RLock()
	flag, exists := s.flags[key]
	if !exists {
		s.mu.RUnlock()
		return nil, feature.ErrFlagNotFound
	}
	c := flag.Clone()
	s.mu.RUnlock()

	pruneExpired(c, s.clock.Now())
	return c, nil
}

// FetchAll returns copies of all flags ordered by key.
func (s *MemoryStore) FetchAll(ctx context.Context) ([]*feature.Flag, error) {
	return s.List(ctx)
}

// List returns all flags, optionally filtered by tags, ordered by key.
func (s *MemoryStore) List(ctx context.Context, tags ...string) ([]*feature.Flag, error) {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := slices.Sorted(maps.Keys(s.flags))
	result := make([]*feature.Flag, 0, len(keys))
	for _, key := range keys {
		flag := s.flags[key]
		if len(tags) > 0 && !flag.HasTag(tags...) {
			continue
		}
		c := flag.Clone()
		pruneExpired(c, now)
		result = append(result, c)
	}

	return result, nil
}

// Create stores a new flag.
func (s *MemoryStore) Create(ctx context.Context, flag *feature.Flag) error {
	prepared, err := prepareCreate(flag, s.clock.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flags[prepared.Key]; exists {
		return ErrFlagExists
	}
	s.flags[prepared.Key] = prepared

	return nil
}

// Update replaces an existing flag, preserving its salt and creation time.
func (s *MemoryStore) Update(ctx context.Context, flag *feature.Flag) error {
	if flag == nil {
		return errors.Join(feature.ErrInvalidFlag, errors.New("flag cannot be nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.flags[flag.Key]
	if !exists {
		return feature.ErrFlagNotFound
	}

	prepared, err := prepareUpdate(existing, flag, s.clock.Now())
	if err != nil {
		return err
	}
	s.flags[prepared.Key] = prepared

	return nil
}

// Delete removes a flag.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flags[key]; !exists {
		return feature.ErrFlagNotFound
	}
	delete(s.flags, key)

	return nil
}

// SetEnabled flips the global enabled switch.
func (s *MemoryStore) SetEnabled(ctx context.Context, key string, enabled bool) error {
	return s.mutate(key, func(f *feature.Flag) error {
		f.Enabled = enabled
		return nil
	})
}

// Archive archives a flag.
func (s *MemoryStore) Archive(ctx context.Context, key string) error {
	return s.mutate(key, func(f *feature.Flag) error {
		f.Archived = true
		return nil
	})
}

// SetOverride creates or replaces an override.
func (s *MemoryStore) SetOverride(ctx context.Context, o feature.Override) error {
	if err := validateOverride(o); err != nil {
		return err
	}
	return s.mutate(o.FlagKey, func(f *feature.Flag) error {
		applyOverride(f, o)
		return nil
	})
}

// DeleteOverride removes an override.
func (s *MemoryStore) DeleteOverride(ctx context.Context, key string, scope feature.Scope, scopeID string) error {
	return s.mutate(key, func(f *feature.Flag) error {
		var m map[string]feature.Override
		switch scope {
		case feature.ScopeUser:
			m = f.UserOverrides
		case feature.ScopeTenant:
			m = f.TenantOverrides
		}
		if _, ok := m[scopeID]; !ok {
			return ErrOverrideNotFound
		}
		delete(m, scopeID)
		return nil
	})
}

// Close releases any resources. For the memory store, this is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// mutate applies fn to a copy of the flag and stores it with a bumped version.
func (s *MemoryStore) mutate(key string, fn func(f *feature.Flag) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.flags[key]
	if !exists {
		return feature.ErrFlagNotFound
	}

	f := existing.Clone()
	if err := fn(f); err != nil {
		return err
	}
	f.Version = existing.Version + 1
	f.UpdatedAt = s.clock.Now()
	s.flags[key] = f

	return nil
}
