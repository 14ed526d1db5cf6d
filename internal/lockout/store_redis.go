package lockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists failure state in a Redis hash per identity. The
// window-aware increment runs as a Lua script so it stays a single atomic
// step under concurrent attempts, matching the memory and postgres stores.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// incrScript restarts the counter when the window has elapsed, otherwise
// increments it. Timestamps are unix nanoseconds.
var incrScript = redis.NewScript(`
local ws = redis.call('HGET', KEYS[1], 'window_started_at')
local fails
if (not ws) or (tonumber(ARGV[1]) - tonumber(ws) > tonumber(ARGV[2])) then
  redis.call('HSET', KEYS[1], 'fails', 1, 'window_started_at', ARGV[1])
  fails = 1
  ws = ARGV[1]
else
  fails = redis.call('HINCRBY', KEYS[1], 'fails', 1)
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {fails, ws}
`)

// NewRedis builds a Redis-backed store. ttl bounds how long abandoned state
// lingers; it should comfortably exceed both the window and the lock
// duration.
func NewRedis(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(identity string) string {
	return "faceguard:lockout:" + SanitizeKey(identity)
}

func (s *RedisStore) Get(ctx context.Context, identity string) (*State, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	state := &State{Identity: identity}
	if v, ok := fields["fails"]; ok {
		state.FailureCount, _ = strconv.Atoi(v)
	}
	if v, ok := fields["window_started_at"]; ok {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.WindowStartedAt = time.Unix(0, ns)
		}
	}
	if v, ok := fields["locked_until"]; ok {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(0, ns)
			state.LockedUntil = &t
		}
	}
	return state, nil
}

func (s *RedisStore) Increment(ctx context.Context, identity string, now time.Time, window time.Duration) (*State, error) {
	res, err := incrScript.Run(ctx, s.client,
		[]string{redisKey(identity)},
		now.UnixNano(), window.Nanoseconds(), s.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("increment lockout: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("increment lockout: unexpected script reply %v", res)
	}

	return &State{
		Identity:        identity,
		FailureCount:    int(res[0]),
		WindowStartedAt: time.Unix(0, res[1]),
	}, nil
}

func (s *RedisStore) Lock(ctx context.Context, identity string, until time.Time) error {
	key := redisKey(identity)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "locked_until", until.UnixNano())
	pipe.PExpire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lock identity: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, redisKey(identity)).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}
