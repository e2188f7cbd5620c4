// Package invalidation carries cache invalidation events between instances
// of the flag engine.
//
// A Bus publishes Event values on a topic and delivers them to Handler
// functions subscribed to that topic:
//
//   - MemoryBus fans out within one process. Each subscriber owns a buffered
//     channel and a goroutine. A full buffer does not block the publisher;
//     the subscriber later receives one reset event in place of what it missed.
//   - RedisBus uses Redis Pub/Sub with JSON payloads, so every instance
//     sharing the Redis server hears every change.
//   - NoopBus discards everything, for single-process deployments.
//
// Events carry the publishing instance in Origin. Receivers skip their own
// events since they already evicted locally before publishing.
//
// MemoryBus never loses an invalidation, though it may widen one to a reset.
// RedisBus is best effort: an instance disconnected from Redis misses events
// and converges when its L1 entries expire. Applying an event only removes
// entries, so neither duplicates nor resets corrupt state.
//
//	bus := invalidation.NewRedisBus(client, invalidation.WithChannelPrefix("prod:"))
//	sub, err := bus.Subscribe(ctx, "feature_flags.invalidate", cache.HandleEvent)
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
package invalidation
