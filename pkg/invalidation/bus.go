package invalidation

import "context"

// Handler applies an event. It must be idempotent: the same change may be
// published more than once, and MemoryBus replaces events a slow subscriber
// could not buffer with a single reset event.
type Handler func(ctx context.Context, ev Event)

// Subscription is an active registration of a Handler.
type Subscription interface {
	// Close stops delivery. It is safe to call more than once.
	Close() error
}

// Bus carries invalidation events between cache instances.
type Bus interface {
	Publish(ctx context.Context, topic string, ev Event) error
	Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error)
	Close() error
}

// NoopBus discards published events. Used by single-process deployments.
type NoopBus struct{}

func (NoopBus) Publish(context.Context, string, Event) error { return nil }

func (NoopBus) Subscribe(context.Context, string, Handler) (Subscription, error) {
	return noopSubscription{}, nil
}

func (NoopBus) Close() error { return nil }

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
