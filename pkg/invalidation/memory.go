package invalidation

import (
	"context"
	"sync"
	"sync/atomic"
)

// OverflowOrigin is the origin of the reset event MemoryBus delivers in place
// of events that did not fit in a subscriber's buffer.
const OverflowOrigin = "memorybus.overflow"

// MemoryBus fans events out to subscribers in the same process.
// Each subscriber has its own buffer and goroutine. A full buffer never blocks
// the publisher: the subscriber is marked and receives one reset event
// instead, which covers every event it missed.
type MemoryBus struct {
	topics     map[string]map[*memorySubscription]struct{}
	bufferSize int
	closed     bool
	overflowed atomic.Int64
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewMemoryBus creates a bus with the given per-subscriber buffer (minimum 1).
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		topics:     make(map[string]map[*memorySubscription]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

// Publish delivers ev to every subscriber of topic without blocking.
func (b *MemoryBus) Publish(ctx context.Context, topic string, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.topics[topic] {
		if !sub.send(ev) {
			b.overflowed.Add(1)
		}
	}
	return nil
}

// Subscribe registers h for topic. Delivery stops when ctx is cancelled or
// the subscription is closed.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &memorySubscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, b.bufferSize),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sub.run(ctx, h)
	}()

	return sub, nil
}

// Overflowed returns how many deliveries were folded into a reset event
// because a subscriber's buffer was full.
func (b *MemoryBus) Overflowed() int64 {
	return b.overflowed.Load()
}

// Close stops every subscription and waits for in-progress handlers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			sub.stop()
		}
	}
	clear(b.topics)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *MemoryBus) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}

type memorySubscription struct {
	bus   *MemoryBus
	topic string
	ch    chan Event
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once

	// missed is set when an event could not be buffered.
	missed atomic.Bool
}

// send queues ev. When the buffer is full it marks the subscription for a
// reset and reports false.
func (s *memorySubscription) send(ev Event) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.ch <- ev:
		return true
	default:
	}

	s.missed.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return false
}

func (s *memorySubscription) run(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			s.bus.remove(s)
			s.stop()
			return
		case <-s.done:
			return
		case ev := <-s.ch:
			h(ctx, ev)
		case <-s.wake:
		}

		if s.missed.CompareAndSwap(true, false) {
			h(ctx, NewResetEvent(OverflowOrigin))
		}
	}
}

func (s *memorySubscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Close unregisters the subscription.
func (s *memorySubscription) Close() error {
	s.bus.remove(s)
	s.stop()
	return nil
}
