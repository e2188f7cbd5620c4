// Package redis connects to the Redis server backing the shared flag cache
// and the cross-instance invalidation channel.
//
// Config is populated from REDIS_* environment variables. Connect retries
// until the server answers PING or ConnectTimeout elapses, and Healthcheck
// wraps PING for readiness probes.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	shared := flagcache.NewRedisStore(client, "flags:")
//	bus := invalidation.NewRedisBus(client, invalidation.WithChannelPrefix("prod:"))
//	cache := flagcache.New(store, flagcache.WithSharedStore(shared), flagcache.WithBus(bus))
//	sub, err := bus.Subscribe(ctx, cache.Config().Topic, cache.HandleEvent)
package redis
