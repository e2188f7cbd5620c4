package flagcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/invalidation"
	"github.com/cgk-platform/cgk-sub021/pkg/logger"
)

// Tier identifies which layer answered a lookup.
type Tier string

const (
	TierL1         Tier = "l1"
	TierL2         Tier = "l2"
	TierRepository Tier = "repository"
)

// Lookup describes how Get or All was answered.
type Lookup struct {
	Tier      Tier
	FromCache bool // answered by L1 or L2 without a repository call
	Stale     bool // repository failed; an expired L1 entry younger than StaleTTL was served
}

// allKey is the single-flight key for FetchAll. Flag keys never contain NUL.
const allKey = "\x00all"

type entry struct {
	flag     *feature.Flag // nil marks a negative entry
	storedAt time.Time
}

// Cache is a two-tier read-through cache of flag snapshots.
//
// Returned flags are shared between callers and must be treated as read-only.
type Cache struct {
	repo       Repository
	shared     SharedStore
	bus        invalidation.Bus
	cfg        Config
	clock      clock.Clock
	log        *slog.Logger
	metrics    Metrics
	instanceID string

	mu sync.Mutex
	l1 *lru[string, entry]
	// seq increases on every invalidation. gens[key] holds the seq of the
	// last invalidation of key and resetAt the seq of the last full reset.
	// A load that began at seq t may only write when both are <= t.
	seq     uint64
	gens    map[string]uint64
	resetAt uint64

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithConfig overrides the default timings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Cache) { c.cfg = cfg }
}

// WithSharedStore enables the L2 tier.
func WithSharedStore(s SharedStore) Option {
	return func(c *Cache) {
		if s != nil {
			c.shared = s
		}
	}
}

// WithBus sets the bus invalidations are published on.
func WithBus(b invalidation.Bus) Option {
	return func(c *Cache) {
		if b != nil {
			c.bus = b
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithInstanceID sets the origin stamped on published events.
// Events carrying this origin are ignored by HandleEvent.
func WithInstanceID(id string) Option {
	return func(c *Cache) {
		if id != "" {
			c.instanceID = id
		}
	}
}

// New creates a cache in front of repo.
// Without options it has no L2 tier and publishes nowhere.
func New(repo Repository, opts ...Option) *Cache {
	c := &Cache{
		repo:       repo,
		shared:     NoopStore{},
		bus:        invalidation.NoopBus{},
		cfg:        DefaultConfig(),
		clock:      clock.New(),
		log:        logger.Discard(),
		metrics:    NoopMetrics{},
		instanceID: invalidation.NewInstanceID(),
		gens:       make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cfg = c.cfg.withDefaults()
	c.log = c.log.With(logger.Component("flagcache"))
	c.l1 = newLRU(c.cfg.L1Capacity, func(string, entry) { c.metrics.Eviction() })

	return c
}

// InstanceID returns the origin stamped on events published by this cache.
func (c *Cache) InstanceID() string { return c.instanceID }

// Config returns the effective configuration.
func (c *Cache) Config() Config { return c.cfg }

// Len returns the number of L1 entries, negative and expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l1.len()
}

// Get returns the flag for key.
//
// It returns feature.ErrFlagNotFound for unknown flags, and an error wrapping
// ErrRepositoryUnavailable when the repository fails and no stale copy is
// young enough to serve. It gives up waiting when ctx is done, but the
// repository call itself continues under FetchTimeout and still fills the cache.
func (c *Cache) Get(ctx context.Context, key string) (*feature.Flag, Lookup, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.l1.get(key)
	c.mu.Unlock()

	if ok && c.fresh(e, now) {
		if e.flag == nil {
			c.metrics.Lookup(TierL1, "negative")
			return nil, Lookup{Tier: TierL1, FromCache: true}, feature.ErrFlagNotFound
		}
		c.metrics.Lookup(TierL1, "hit")
		return e.flag, Lookup{Tier: TierL1, FromCache: true}, nil
	}

	tok := c.token()
	if flag, ok := c.getShared(ctx, key); ok {
		c.admit(ctx, flag)
		c.storeL1(key, flag, tok)
		c.metrics.Lookup(TierL2, "hit")
		return flag, Lookup{Tier: TierL2, FromCache: true}, nil
	}

	flag, err := c.load(ctx, key)
	switch {
	case err == nil:
		c.metrics.Lookup(TierRepository, "hit")
		return flag, Lookup{Tier: TierRepository}, nil
	case errors.Is(err, feature.ErrFlagNotFound):
		c.metrics.Lookup(TierRepository, "negative")
		return nil, Lookup{Tier: TierRepository}, feature.ErrFlagNotFound
	}

	if stale, ok := c.stale(key); ok {
		c.metrics.Lookup(TierL1, "stale")
		c.log.WarnContext(ctx, "repository unavailable, serving stale flag",
			logger.FlagKey(key), logger.Error(err))
		return stale, Lookup{Tier: TierL1, FromCache: true, Stale: true}, nil
	}

	c.metrics.Lookup(TierRepository, "error")
	return nil, Lookup{Tier: TierRepository}, errors.Join(ErrRepositoryUnavailable, err)
}

// All returns every flag from the repository and refreshes L1 with them.
// When the repository fails it returns the L1 entries younger than StaleTTL.
func (c *Cache) All(ctx context.Context) ([]*feature.Flag, Lookup, error) {
	ch := c.group.DoChan(allKey, func() (any, error) {
		return c.fetchAll(ctx)
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]*feature.Flag), Lookup{Tier: TierRepository}, nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	snapshot := c.snapshot()
	if len(snapshot) == 0 {
		return nil, Lookup{Tier: TierRepository}, errors.Join(ErrRepositoryUnavailable, err)
	}

	c.log.WarnContext(ctx, "repository unavailable, serving cached flags",
		slog.Int("count", len(snapshot)), logger.Error(err))
	return snapshot, Lookup{Tier: TierL1, FromCache: true, Stale: true}, nil
}

// Invalidate drops key from L1 and L2 and tells peers to do the same.
// Local eviction always completes; the error only reports a failed publish.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.evict(key)
	c.metrics.Invalidation("local", false)
	c.deleteShared(ctx, key)
	return c.publish(ctx, invalidation.NewEvent(c.instanceID, key))
}

// InvalidateAll drops every entry from L1 and L2 and tells peers to do the same.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.reset()
	c.metrics.Invalidation("local", true)
	if err := c.shared.Clear(ctx); err != nil {
		c.log.ErrorContext(ctx, "failed to clear shared flag cache", logger.Error(err))
	}
	return c.publish(ctx, invalidation.NewResetEvent(c.instanceID))
}

// Refresh evicts key and reloads it from the repository right away,
// bypassing L2 and any load already in flight. Peers are told to evict.
// A flag that no longer exists is cached as not found and is not an error.
func (c *Cache) Refresh(ctx context.Context, key string) (*feature.Flag, error) {
	c.evict(key)
	c.metrics.Invalidation("refresh", false)
	c.deleteShared(ctx, key)

	flag, err := c.fetch(ctx, key, c.token())
	if errors.Is(err, feature.ErrFlagNotFound) {
		flag, err = nil, nil
	}
	if err != nil {
		err = errors.Join(ErrRepositoryUnavailable, err)
	}

	return flag, errors.Join(err, c.publish(ctx, invalidation.NewEvent(c.instanceID, key)))
}

// HandleEvent applies an invalidation published by a peer. Events from this
// instance are ignored. L2 is cleaned again as well, since a load that raced
// the publisher may have written a pre-invalidation snapshot there.
func (c *Cache) HandleEvent(ctx context.Context, ev invalidation.Event) {
	if ev.Origin == c.instanceID {
		return
	}

	if ev.All {
		c.reset()
		if err := c.shared.Clear(ctx); err != nil {
			c.log.ErrorContext(ctx, "failed to clear shared flag cache", logger.Error(err))
		}
	} else {
		c.evict(ev.Key)
		c.deleteShared(ctx, ev.Key)
	}
	c.metrics.Invalidation("peer", ev.All)
	c.log.DebugContext(ctx, "applied peer invalidation",
		logger.FlagKey(ev.Key), slog.Bool("all", ev.All), logger.Origin(ev.Origin))
}

func (c *Cache) fresh(e entry, now time.Time) bool {
	ttl := c.cfg.L1TTL
	if e.flag == nil {
		ttl = c.cfg.NegativeTTL
	}
	return now.Sub(e.storedAt) < ttl
}

func (c *Cache) stale(key string) (*feature.Flag, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.l1.get(key)
	if !ok || e.flag == nil || now.Sub(e.storedAt) >= c.cfg.StaleTTL {
		return nil, false
	}
	return e.flag, true
}

func (c *Cache) snapshot() []*feature.Flag {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	flags := make([]*feature.Flag, 0, c.l1.len())
	c.l1.each(func(_ string, e entry) {
		if e.flag != nil && now.Sub(e.storedAt) < c.cfg.StaleTTL {
			flags = append(flags, e.flag)
		}
	})
	return flags
}

func (c *Cache) token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// validLocked reports whether a load started at tok may still write key.
func (c *Cache) validLocked(key string, tok uint64) bool {
	return c.resetAt <= tok && c.gens[key] <= tok
}

// storeL1 writes key unless it was invalidated after tok.
func (c *Cache) storeL1(key string, flag *feature.Flag, tok uint64) bool {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.validLocked(key, tok) {
		return false
	}
	c.l1.put(key, entry{flag: flag, storedAt: now})
	return true
}

func (c *Cache) evict(key string) {
	c.mu.Lock()
	c.seq++
	c.gens[key] = c.seq
	c.l1.remove(key)
	c.mu.Unlock()

	c.group.Forget(key)
	c.group.Forget(allKey)
}

func (c *Cache) reset() {
	c.mu.Lock()
	c.seq++
	c.resetAt = c.seq
	clear(c.gens)
	c.l1.clear()
	c.mu.Unlock()

	c.group.Forget(allKey)
}

// load fetches key through the single-flight group.
func (c *Cache) load(ctx context.Context, key string) (*feature.Flag, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(ctx, key, c.token())
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*feature.Flag), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch calls the repository under FetchTimeout, detached from the caller's
// cancellation, and fills both tiers if key was not invalidated meanwhile.
func (c *Cache) fetch(ctx context.Context, key string, tok uint64) (*feature.Flag, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()

	start := c.clock.Now()
	flag, err := c.safeFetch(fctx, key)
	took := c.clock.Since(start)
	c.metrics.Fetch(took, err)

	if err != nil {
		if errors.Is(err, feature.ErrFlagNotFound) {
			c.storeL1(key, nil, tok)
			return nil, feature.ErrFlagNotFound
		}
		c.log.WarnContext(ctx, "flag repository fetch failed",
			logger.FlagKey(key), logger.Duration(took), logger.Error(err))
		return nil, err
	}

	c.admit(ctx, flag)
	if c.storeL1(key, flag, tok) {
		if err := c.shared.Set(fctx, flag, c.cfg.L2TTL); err != nil {
			c.log.WarnContext(ctx, "failed to write shared flag cache", logger.FlagKey(key), logger.Error(err))
		}
	}
	return flag, nil
}

func (c *Cache) safeFetch(ctx context.Context, key string) (flag *feature.Flag, err error) {
	defer func() {
		if r := recover(); r != nil {
			flag, err = nil, fmt.Errorf("flagcache: repository panic: %v", r)
		}
	}()

	flag, err = c.repo.Fetch(ctx, key)
	if err == nil && flag == nil {
		err = feature.ErrFlagNotFound
	}
	return flag, err
}

func (c *Cache) fetchAll(ctx context.Context) (flags []*feature.Flag, err error) {
	tok := c.token()
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			flags, err = nil, fmt.Errorf("flagcache: repository panic: %v", r)
		}
	}()

	start := c.clock.Now()
	flags, err = c.repo.FetchAll(fctx)
	took := c.clock.Since(start)
	c.metrics.Fetch(took, err)
	if err != nil {
		c.log.WarnContext(ctx, "flag repository fetch all failed", logger.Duration(took), logger.Error(err))
		return nil, err
	}

	out := make([]*feature.Flag, 0, len(flags))
	for _, f := range flags {
		if f == nil {
			continue
		}
		c.admit(ctx, f)
		c.storeL1(f.Key, f, tok)
		out = append(out, f)
	}
	return out, nil
}

// admit seals a snapshot entering L1 so evaluations do not validate it again.
// Invalid definitions are still cached; evaluating them serves the default.
func (c *Cache) admit(ctx context.Context, flag *feature.Flag) {
	if err := flag.Seal(); err != nil {
		c.log.WarnContext(ctx, "caching invalid flag definition", logger.FlagKey(flag.Key), logger.Error(err))
	}
}

func (c *Cache) getShared(ctx context.Context, key string) (*feature.Flag, bool) {
	flag, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "shared flag cache read failed", logger.FlagKey(key), logger.Error(err))
		return nil, false
	}
	return flag, ok && flag != nil
}

func (c *Cache) deleteShared(ctx context.Context, key string) {
	if err := c.shared.Delete(ctx, key); err != nil {
		c.log.ErrorContext(ctx, "failed to delete flag from shared cache", logger.FlagKey(key), logger.Error(err))
	}
}

func (c *Cache) publish(ctx context.Context, ev invalidation.Event) error {
	if err := c.bus.Publish(ctx, c.cfg.Topic, ev); err != nil {
		c.log.ErrorContext(ctx, "failed to publish flag invalidation",
			logger.FlagKey(ev.Key), slog.Bool("all", ev.All), logger.Error(err))
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}
