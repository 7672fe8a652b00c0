package mutex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the part of *redis.Client the mutex needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes KEYS[1] when its value starts with ARGV[1].
const releaseScript = `
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1])) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis holds each lock as a SET NX key whose value is the holder. With
// expireAfter 0 the key never expires.
//
// Release only deletes keys taken from the same host. A background job's lock
// is released by its completion callback, a different process on that host,
// so the check cannot be per process.
type Redis struct {
	client      redisClient
	holder      string
	owner       string
	expireAfter time.Duration
}

func NewRedis(client redisClient, holder string, expireAfter time.Duration) *Redis {
	return &Redis{client: client, holder: holder, owner: holderHost(holder), expireAfter: expireAfter}
}

// holderHost is the "host/" prefix of a host/pid/random holder, or the
// whole holder when it has no such prefix.
func holderHost(holder string) string {
	if i := strings.IndexByte(holder, '/'); i >= 0 {
		return holder[:i+1]
	}
	return holder
}

// OpenRedis dials lazily; the first Acquire surfaces connection errors.
func OpenRedis(addr, password string, db int, holder string, expireAfter time.Duration) (*Redis, func() error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return NewRedis(c, holder, expireAfter), c.Close
}

func (m *Redis) Distributed() bool { return true }

func (m *Redis) Acquire(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	ok, err := m.client.SetNX(ctx, key, m.holder, m.expireAfter).Result()
	if err != nil {
		return false, fmt.Errorf("mutex: acquire %s: %w", key, err)
	}
	return ok, nil
}

func (m *Redis) Release(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := m.client.Eval(ctx, releaseScript, []string{key}, m.owner).Err(); err != nil {
		return fmt.Errorf("mutex: release %s: %w", key, err)
	}
	return nil
}
