package flagcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cgk-platform/cgk-sub021/pkg/feature"
)

// setScript writes a snapshot unless the stored one has a higher version.
// KEYS: entry, index. ARGV: json, version, ttl in ms (0 keeps it forever), flag key.
var setScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == "table" and tonumber(doc.version or 0) > tonumber(ARGV[2]) then
		return 0
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
redis.call("SADD", KEYS[2], ARGV[4])
return 1
`)

// RedisStore keeps flag snapshots in Redis as JSON under prefix+key.
// A set at prefix+"__index" tracks written keys so Clear does not need SCAN.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store. The client is owned by the caller.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }
func (s *RedisStore) indexKey() string    { return s.prefix + "__index" }

func (s *RedisStore) Get(ctx context.Context, key string) (*feature.Flag, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flagcache: redis get %q: %w", key, err)
	}

	var flag feature.Flag
	if err := json.Unmarshal(data, &flag); err != nil {
		return nil, false, fmt.Errorf("flagcache: decode %q: %w", key, err)
	}
	return &flag, true, nil
}

func (s *RedisStore) Set(ctx context.Context, flag *feature.Flag, ttl time.Duration) error {
	data, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("flagcache: encode %q: %w", flag.Key, err)
	}

	ms := ttl.Milliseconds()
	if ttl > 0 && ms == 0 {
		ms = 1
	}

	keys := []string{s.key(flag.Key), s.indexKey()}
	err = setScript.Run(ctx, s.client, keys, data, flag.Version, ms, flag.Key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("flagcache: redis set %q: %w", flag.Key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	members := make([]any, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
		members[i] = k
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, full...)
	pipe.SRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flagcache: redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("flagcache: redis clear: %w", err)
	}

	full := make([]string, 0, len(members)+1)
	for _, k := range members {
		full = append(full, s.key(k))
	}
	full = append(full, s.indexKey())

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("flagcache: redis clear: %w", err)
	}
	return nil
}
