// Package runlock keeps two instances of the same sync job from running at
// once. Locks live in Redis with a TTL so a crashed run eventually frees its
// slot; a live run keeps extending the TTL until it releases the lock.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHeld means another run owns the lock.
var ErrHeld = errors.New("run lock held by another process")

// ErrLost means the lock expired while this run still held it.
var ErrLost = errors.New("run lock lost")

const keyPrefix = "lottosync:lock:"

// release deletes the key only while it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extend resets the TTL only while the key still carries our token.
var extend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Locker {
	return &Locker{client: client, ttl: ttl, logger: logger}
}

// Lock is one acquired run slot.
type Lock struct {
	key    string
	token  string
	locker *Locker

	stop chan struct{}
	done chan struct{}
}

// Acquire takes the lock for job or returns ErrHeld.
func (l *Locker) Acquire(ctx context.Context, job string) (*Lock, error) {
	key := keyPrefix + job
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		owner, _ := l.client.Get(ctx, key).Result()
		l.logger.Warn("run lock held", zap.String("job", job), zap.String("owner", owner))
		return nil, fmt.Errorf("%s: %w", job, ErrHeld)
	}
	l.logger.Debug("run lock acquired", zap.String("job", job), zap.String("token", token))

	lk := &Lock{key: key, token: token, locker: l, stop: make(chan struct{}), done: make(chan struct{})}
	go lk.keepAlive(context.WithoutCancel(ctx))
	return lk, nil
}

// Refresh resets the lock TTL. It returns ErrLost when the lock expired and
// another run may have taken it.
func (lk *Lock) Refresh(ctx context.Context) error {
	n, err := extend.Run(ctx, lk.locker.client, []string{lk.key}, lk.token, lk.locker.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("refresh %s: %w", lk.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", lk.key, ErrLost)
	}
	return nil
}

// keepAlive refreshes the lock every third of its TTL until Release.
func (lk *Lock) keepAlive(ctx context.Context) {
	defer close(lk.done)
	interval := lk.locker.ttl / 3
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-lk.stop:
			return
		case <-t.C:
			err := lk.Refresh(ctx)
			switch {
			case errors.Is(err, ErrLost):
				lk.locker.logger.Error("run lock lost", zap.String("key", lk.key))
				return
			case err != nil:
				lk.locker.logger.Warn("run lock refresh failed", zap.String("key", lk.key), zap.Error(err))
			}
		}
	}
}

// Release frees the lock if this run still owns it. A lock that expired and
// was taken over by another run is left alone.
func (lk *Lock) Release(ctx context.Context) error {
	close(lk.stop)
	<-lk.done

	n, err := release.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", lk.key, err)
	}
	if n == 0 {
		lk.locker.logger.Warn("run lock expired before release", zap.String("key", lk.key))
	}
	return nil
}
