package flagcache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// SharedStore is the L2 tier, shared by every instance.
// Only positive entries are stored; a missing key reports ok=false.
// Set must not replace a live entry carrying a higher Version; such a write
// is dropped without error.
type SharedStore interface {
	Get(ctx context.Context, key string) (flag *feature.Flag, ok bool, err error)
	Set(ctx context.Context, flag *feature.Flag, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
}

// NoopStore disables the L2 tier.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) (*feature.Flag, bool, error) { return nil, false, nil }
func (NoopStore) Set(context.Context, *feature.Flag, time.Duration) error  { return nil }
func (NoopStore) Delete(context.Context, ...string) error                  { return nil }
func (NoopStore) Clear(context.Context) error                              { return nil }

// MemoryStore is an in-process SharedStore. Several Cache instances in one
// process (tests, embedded deployments) can share it the way they would share Redis.
type MemoryStore struct {
	clock clock.Clock
	mu    sync.RWMutex
	items map[string]sharedEntry
}

type sharedEntry struct {
	flag      *feature.Flag
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore. A nil clk means wall time.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{clock: clk, items: make(map[string]sharedEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*feature.Flag, bool, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.flag.Clone(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, flag *feature.Flag, ttl time.Duration) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[flag.Key]; ok && now.Before(cur.expiresAt) && cur.flag.Version > flag.Version {
		return nil
	}
	s.items[flag.Key] = sharedEntry{flag: flag.Clone(), expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.items, k)
	}
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
