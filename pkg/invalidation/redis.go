package invalidation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/cgk-platform/cgk-sub021/pkg/logger"
)

// RedisBus carries events over Redis Pub/Sub as JSON payloads.
// Pub/Sub is fire-and-forget: instances that are disconnected when an event
// is published miss it and rely on cache TTLs to converge.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger

	mu     sync.Mutex
	subs   map[*redisSubscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

// RedisOption configures a RedisBus.
type RedisOption func(*RedisBus)

// WithChannelPrefix prepends prefix to every topic, e.g. "staging:".
func WithChannelPrefix(prefix string) RedisOption {
	return func(b *RedisBus) { b.prefix = prefix }
}

// WithLogger sets the logger for undecodable payloads.
func WithLogger(l *slog.Logger) RedisOption {
	return func(b *RedisBus) { b.log = logger.OrDiscard(l) }
}

// NewRedisBus creates a bus on top of client. The client is owned by the caller.
func NewRedisBus(client redis.UniversalClient, opts ...RedisOption) *RedisBus {
	b := &RedisBus{
		client: client,
		log:    logger.Discard(),
		subs:   make(map[*redisSubscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends ev on the channel of topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.prefix+topic, payload).Err()
}

// Subscribe listens on the channel of topic. It returns once Redis has
// confirmed the subscription so no event published afterwards is missed.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.mu.Unlock()

	pubsub := b.client.Subscribe(ctx, b.prefix+topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{bus: b, pubsub: pubsub}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = pubsub.Close()
		return nil, ErrBusClosed
	}
	b.subs[sub] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		b.dispatch(ctx, sub, h)
	}()

	return sub, nil
}

// Close ends every subscription and waits for their dispatch loops.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redisSubscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		errs = append(errs, sub.Close())
	}
	b.wg.Wait()
	return errors.Join(errs...)
}

func (b *RedisBus) dispatch(ctx context.Context, sub *redisSubscription, h Handler) {
	ch := sub.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.WarnContext(ctx, "dropping undecodable invalidation event",
					slog.String("channel", msg.Channel), logger.Error(err))
				continue
			}
			if err := ev.Validate(); err != nil {
				b.log.WarnContext(ctx, "dropping invalid invalidation event",
					slog.String("channel", msg.Channel), logger.Error(err))
				continue
			}
			h(ctx, ev)
		}
	}
}

type redisSubscription struct {
	bus    *RedisBus
	pubsub *redis.PubSub
	once   sync.Once
	err    error
}

// Close unsubscribes from Redis.
func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		s.err = s.pubsub.Close()
	})
	return s.err
}
