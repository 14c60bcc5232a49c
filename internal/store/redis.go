package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when the lock is currently owned by someone else.
var ErrLockHeld = errors.New("lock already held")

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// releaseScript deletes the key only if it still holds our token, so an
// expired lock reacquired by another request is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a short-lived mutex acquired with SET NX PX.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock takes a mutex on key for at most ttl. Returns ErrLockHeld when
// another holder owns it.
func (r *Redis) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: r.Client, key: key, token: token}, nil
}

// Release frees the lock if we still own it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
