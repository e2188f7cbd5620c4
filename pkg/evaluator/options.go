package evaluator

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
	"github.com/cgk-platform/cgk-sub021/pkg/invalidation"
)

type options struct {
	cache     []flagcache.Option
	bus       invalidation.Bus
	clock     clock.Clock
	log       *slog.Logger
	fallbacks map[string]any
}

// Option configures an Evaluator.
type Option func(*options)

// WithConfig sets the cache timings.
func WithConfig(cfg flagcache.Config) Option {
	return func(o *options) { o.cache = append(o.cache, flagcache.WithConfig(cfg)) }
}

// WithSharedStore enables the shared L2 tier.
func WithSharedStore(s flagcache.SharedStore) Option {
	return func(o *options) { o.cache = append(o.cache, flagcache.WithSharedStore(s)) }
}

// WithBus publishes local invalidations and applies those of peers.
func WithBus(b invalidation.Bus) Option {
	return func(o *options) {
		if b != nil {
			o.bus = b
		}
	}
}

// WithClock sets the time source for schedules, overrides and cache ages.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m flagcache.Metrics) Option {
	return func(o *options) { o.cache = append(o.cache, flagcache.WithMetrics(m)) }
}

// WithFallbacks sets the value served for a flag that is unknown or cannot be
// loaded. Flags missing from the map fall back to false.
func WithFallbacks(values map[string]any) Option {
	return func(o *options) {
		for k, v := range values {
			o.fallbacks[k] = v
		}
	}
}

// WithInstanceID sets the origin stamped on invalidation events.
func WithInstanceID(id string) Option {
	return func(o *options) { o.cache = append(o.cache, flagcache.WithInstanceID(id)) }
}
