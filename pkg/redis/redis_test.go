package redis_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
	"github.com/cgk-platform/cgk-sub021/pkg/invalidation"
	"github.com/cgk-platform/cgk-sub021/pkg/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("connects to a running server", func(t *testing.T) {
		t.Parallel()
		m := miniredis.RunT(t)

		client, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + m.Addr() + "/0",
			RetryAttempts:  1,
			ConnectTimeout: time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, redis.Healthcheck(client)(context.Background()))
	})

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{})
		require.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("bad url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "http://nope"})
		require.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("server down", func(t *testing.T) {
		t.Parallel()
		m := miniredis.RunT(t)
		addr := m.Addr()
		m.Close()

		_, err := redis.Connect(context.Background(), redis.Config{
			ConnectionURL:  "redis://" + addr + "/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: time.Second,
		})
		require.ErrorIs(t, err, redis.ErrRedisNotReady)
	})
}

func TestHealthcheck_Fails(t *testing.T) {
	t.Parallel()
	m := miniredis.RunT(t)

	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL: "redis://" + m.Addr() + "/0",
		RetryAttempts: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	m.Close()
	assert.ErrorIs(t, redis.Healthcheck(client)(context.Background()), redis.ErrHealthcheckFailed)
}

func TestConnect_FlagEngineWiring(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := miniredis.RunT(t)

	client, err := redis.Connect(ctx, redis.Config{
		ConnectionURL:  "redis://" + m.Addr() + "/0",
		RetryAttempts:  1,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := flagstore.NewMemoryStore(flagstore.WithFlags(&feature.Flag{
		Key:     "checkout",
		Type:    feature.TypeBoolean,
		Enabled: true,
		Salt:    "0123456789abcdef0123456789abcdef",
	}))
	require.NoError(t, err)

	shared := flagcache.NewRedisStore(client, "flags:")
	bus := invalidation.NewRedisBus(client, invalidation.WithChannelPrefix("prod:"))
	t.Cleanup(func() { _ = bus.Close() })
	cache := flagcache.New(store, flagcache.WithSharedStore(shared), flagcache.WithBus(bus))
	sub, err := bus.Subscribe(ctx, cache.Config().Topic, cache.HandleEvent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	_, _, err = cache.Get(ctx, "checkout")
	require.NoError(t, err)
	assert.True(t, m.Exists("flags:checkout"))
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, bus.Publish(ctx, cache.Config().Topic, invalidation.NewEvent("peer", "checkout")))
	require.Eventually(t, func() bool {
		return cache.Len() == 0 && !m.Exists("flags:checkout")
	}, 2*time.Second, 10*time.Millisecond)
}
