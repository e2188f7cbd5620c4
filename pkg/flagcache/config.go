package flagcache

import "time"

// Config holds the cache timings. Zero fields fall back to the defaults.
type Config struct {
	L1TTL        time.Duration `env:"FLAGS_L1_TTL" envDefault:"10s"`                                  // L1TTL is how long an in-process entry is fresh.
	L2TTL        time.Duration `env:"FLAGS_L2_TTL" envDefault:"60s"`                                  // L2TTL is the expiry of entries in the shared store.
	NegativeTTL  time.Duration `env:"FLAGS_NEGATIVE_TTL" envDefault:"10s"`                            // NegativeTTL is how long a missing flag is remembered.
	StaleTTL     time.Duration `env:"FLAGS_STALE_TTL" envDefault:"5m"`                                // StaleTTL bounds the age of entries served while the repository fails.
	FetchTimeout time.Duration `env:"FLAGS_FETCH_TIMEOUT" envDefault:"2s"`                            // FetchTimeout bounds a single repository call.
	Topic        string        `env:"FLAGS_INVALIDATION_TOPIC" envDefault:"feature_flags.invalidate"` // Topic is the bus topic for invalidation events.
	L1Capacity   int           `env:"FLAGS_L1_CAPACITY" envDefault:"10000"`                           // L1Capacity is the maximum number of in-process entries.
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		L1TTL:        10 * time.Second,
		L2TTL:        60 * time.Second,
		NegativeTTL:  10 * time.Second,
		StaleTTL:     5 * time.Minute,
		FetchTimeout: 2 * time.Second,
		Topic:        "feature_flags.invalidate",
		L1Capacity:   10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.L1TTL <= 0 {
		c.L1TTL = d.L1TTL
	}
	if c.L2TTL <= 0 {
		c.L2TTL = d.L2TTL
	}
	if c.NegativeTTL <= 0 {
		c.NegativeTTL = d.NegativeTTL
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = d.StaleTTL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.Topic == "" {
		c.Topic = d.Topic
	}
	if c.L1Capacity <= 0 {
		c.L1Capacity = d.L1Capacity
	}
	return c
}
