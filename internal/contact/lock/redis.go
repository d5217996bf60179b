package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"contactlink/pkg/platform/sentinel"
)

const (
	defaultRedisTTL   = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	defaultKeyPrefix  = "contactlink:lock:"
	releaseTimeout    = 2 * time.Second
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica. Each key is a SET NX PX lease
// holding a random token; the lease expires on its own if the holder dies.
type Redis struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
}

type RedisOption func(*Redis)

// WithTTL sets the lease duration. It must outlive the slowest reconciliation.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryDelay(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retryDelay = d
		}
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:     client,
		ttl:        defaultRedisTTL,
		retryDelay: defaultRetryDelay,
		prefix:     defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock acquires every key in sorted order, polling until ctx is done.
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := uniqueSorted(keys)
	token := uuid.NewString()
	acquired := make([]string, 0, len(sorted))
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = releaseScript.Run(ctx, r.client, []string{acquired[i]}, token).Err()
		}
	}

	for _, key := range sorted {
		redisKey := r.prefix + key
		if err := r.acquire(ctx, redisKey, token); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, redisKey)
	}
	return release, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: acquire %s: %v", sentinel.ErrUnavailable, key, err)
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(r.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %s: %w", sentinel.ErrLocked, key, ctx.Err())
		case <-timer.C:
		}
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
