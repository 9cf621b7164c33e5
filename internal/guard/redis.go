package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares one ledger between engine instances. Each path key maps
// to a hash carrying current and pre-reservation state; retention is enforced
// with a per-key TTL on top of explicit Prune.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

type RedisConfig struct {
	Addr      string
	DB        int
	Prefix    string
	Retention time.Duration
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("guard: redis ping: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "cyclarb"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: cfg.Retention}, nil
}

func (s *RedisStore) key(pathKey string) string {
	return s.prefix + ":ledger:" + pathKey
}

func (s *RedisStore) Get(ctx context.Context, pathKey string) (Entry, bool, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(pathKey), "seen_ms", "count").Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("guard: redis get %q: %w", pathKey, err)
	}
	if vals[0] == nil || vals[1] == nil {
		return Entry{}, false, nil
	}
	var seenMs int64
	var count int
	if _, err := fmt.Sscan(vals[0].(string), &seenMs); err != nil {
		return Entry{}, false, fmt.Errorf("guard: redis decode %q: %w", pathKey, err)
	}
	if _, err := fmt.Sscan(vals[1].(string), &count); err != nil {
		return Entry{}, false, fmt.Errorf("guard: redis decode %q: %w", pathKey, err)
	}
	return Entry{PathKey: pathKey, LastSeen: time.UnixMilli(seenMs).UTC(), Count: count}, true, nil
}

// reserveScript saves the pre-reservation state in the same hash so a
// rollback can restore it atomically.
var reserveScript = redis.NewScript(`
local k = KEYS[1]
local now = ARGV[1]
local seen = redis.call('HGET', k, 'seen_ms')
if seen then
  redis.call('HSET', k, 'prev_seen_ms', seen, 'prev_count', redis.call('HGET', k, 'count'))
  redis.call('HSET', k, 'seen_ms', now, 'count', redis.call('HGET', k, 'count') + 1, 'provisional', 1)
else
  redis.call('HSET', k, 'seen_ms', now, 'count', 1, 'provisional', 1)
end
if tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', k, ARGV[2])
end
return 1
`)

func (s *RedisStore) Reserve(ctx context.Context, pathKey string, now time.Time) error {
	err := reserveScript.Run(ctx, s.rdb, []string{s.key(pathKey)},
		now.UnixMilli(), s.retention.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("guard: redis reserve %q: %w", pathKey, err)
	}
	return nil
}

func (s *RedisStore) Commit(ctx context.Context, pathKey string) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key(pathKey), "provisional", 0)
	pipe.HDel(ctx, s.key(pathKey), "prev_seen_ms", "prev_count")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("guard: redis commit %q: %w", pathKey, err)
	}
	return nil
}

var rollbackScript = redis.NewScript(`
local k = KEYS[1]
if redis.call('HGET', k, 'provisional') ~= '1' then
  return 0
end
local prev = redis.call('HGET', k, 'prev_seen_ms')
if prev then
  redis.call('HSET', k, 'seen_ms', prev, 'count', redis.call('HGET', k, 'prev_count'), 'provisional', 0)
  redis.call('HDEL', k, 'prev_seen_ms', 'prev_count')
else
  redis.call('DEL', k)
end
return 1
`)

func (s *RedisStore) Rollback(ctx context.Context, pathKey string) error {
	if err := rollbackScript.Run(ctx, s.rdb, []string{s.key(pathKey)}).Err(); err != nil {
		return fmt.Errorf("guard: redis rollback %q: %w", pathKey, err)
	}
	return nil
}

func (s *RedisStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	var pruned int
	iter := s.rdb.Scan(ctx, 0, s.prefix+":ledger:*", 256).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		seenStr, err := s.rdb.HGet(ctx, key, "seen_ms").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("guard: redis prune read: %w", err)
		}
		var seenMs int64
		if _, err := fmt.Sscan(seenStr, &seenMs); err != nil {
			continue
		}
		if time.UnixMilli(seenMs).Before(cutoff) {
			if err := s.rdb.Del(ctx, key).Err(); err != nil {
				return pruned, fmt.Errorf("guard: redis prune delete: %w", err)
			}
			pruned++
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("guard: redis prune scan: %w", err)
	}
	return pruned, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+":ledger:*", 256).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("guard: redis len: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
