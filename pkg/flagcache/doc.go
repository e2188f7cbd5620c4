// Package flagcache is the read path between flag evaluation and the flag
// repository.
//
// # Tiers
//
// Cache.Get answers from, in order:
//
//   - L1, an in-process LRU of snapshots that are fresh for L1TTL (10s).
//     Unknown flags are remembered as negative entries for NegativeTTL (10s).
//   - L2, a SharedStore such as RedisStore, with entries expiring after
//     L2TTL (60s). Negative results are never written to L2.
//   - the Repository. Concurrent misses for the same key share one call
//     (golang.org/x/sync/singleflight), which runs under FetchTimeout (2s)
//     and detached from the caller's cancellation so an impatient caller does
//     not fail the call for everyone else.
//
// When the repository fails, Get serves the last L1 snapshot as long as it is
// younger than StaleTTL (5m) and reports Lookup.Stale. Otherwise it returns
// ErrRepositoryUnavailable. Errors are never cached.
//
// # Invalidation
//
// Invalidate, InvalidateAll and Refresh evict locally, clean L2, then publish
// an invalidation.Event so peers evict their L1 and clean L2 once more.
// Peers apply events through HandleEvent, usually subscribed on an
// invalidation.Bus:
//
//	cache := flagcache.New(store,
//		flagcache.WithSharedStore(flagcache.NewRedisStore(client, "flags:")),
//		flagcache.WithBus(bus),
//	)
//	sub, err := bus.Subscribe(ctx, cache.Config().Topic, cache.HandleEvent)
//
// Every eviction advances a sequence number. A load records the sequence when
// it starts and drops its result if the key was invalidated in the meantime,
// so a slow fetch can never put a pre-invalidation snapshot back into L1.
// L2 writes are version-checked instead: a SharedStore keeps the entry with
// the higher Version.
//
// Snapshots are sealed (feature.Flag.Seal) when they enter L1, so evaluating
// a cached flag does not validate it again.
//
// Refresh reloads synchronously and skips any load already in flight; it is
// what the kill switch uses to make the local instance observe a disabled
// flag before returning.
//
// # Metrics
//
// Metrics receives lookup, fetch, invalidation and eviction events.
// NoopMetrics is the default; PrometheusMetrics exports counters and a fetch
// latency histogram under the feature_flags_cache namespace.
package flagcache
