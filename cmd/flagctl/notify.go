package main

import (
	"context"

	"github.com/cgk-platform/cgk-sub021/pkg/evaluator"
	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
	"github.com/cgk-platform/cgk-sub021/pkg/invalidation"
)

// fleetOptions connects to Redis and returns evaluator options that clear
// the shared cache tier and notify running services over the invalidation bus.
func (a *app) fleetOptions(ctx context.Context) ([]evaluator.Option, func(), error) {
	client, err := a.connectRedis(ctx)
	if err != nil {
		return nil, nil, err
	}

	bus := invalidation.NewRedisBus(client, invalidation.WithLogger(a.log))
	opts := []evaluator.Option{
		evaluator.WithConfig(a.cacheCfg),
		evaluator.WithLogger(a.log),
		evaluator.WithSharedStore(flagcache.NewRedisStore(client, a.cfg.RedisPrefix)),
		evaluator.WithBus(bus),
	}
	cleanup := func() {
		_ = bus.Close()
		_ = client.Close()
	}
	return opts, cleanup, nil
}

// localOptions is used with --no-notify: nothing outside this process is touched.
func (a *app) localOptions() []evaluator.Option {
	return []evaluator.Option{
		evaluator.WithConfig(a.cacheCfg),
		evaluator.WithLogger(a.log),
	}
}
