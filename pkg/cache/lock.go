package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// ScopeLock provides mutual exclusion for ranking recomputation scopes.
type ScopeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScopeLock builds a lock manager with the given hold TTL.
func NewScopeLock(client *redis.Client, ttl time.Duration) *ScopeLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ScopeLock{client: client, ttl: ttl}
}

// Acquire attempts to take the lock for key. It returns a release token when
// the lock was obtained and ok=false when another holder owns it.
func (l *ScopeLock) Acquire(ctx context.Context, key string) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock when the token still matches.
func (l *ScopeLock) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
