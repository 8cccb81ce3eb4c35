package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Both scripts only touch the key while it still holds our token.
var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// NewRedis returns a Locker shared by every process using the same key. The
// lease expires after ttl unless refreshed; it is refreshed every ttl/3 while held.
// The lease counts as lost once the key no longer holds its token, or once ttl
// has passed since the last successful refresh.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) Locker {
	return &redisLocker{client: client, key: key, ttl: ttl}
}

type redisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func (l *redisLocker) Acquire(ctx context.Context) (Lease, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("error acquiring lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	lease := &redisLease{locker: l, token: token, stop: make(chan struct{}), lost: make(chan struct{})}
	lease.wg.Add(1)
	go lease.refresh()
	return lease, nil
}

type redisLease struct {
	locker *redisLocker
	token  string
	stop   chan struct{}
	lost   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func (l *redisLease) Done() <-chan struct{} {
	return l.lost
}

func (l *redisLease) refresh() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.locker.ttl / 3)
	defer ticker.Stop()

	// the key may have expired once this passes without a successful refresh
	deadline := time.Now().Add(l.locker.ttl)

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.locker.ttl/3)
			n, err := refreshScript.Run(ctx, l.locker.client, []string{l.locker.key}, l.token, l.locker.ttl.Milliseconds()).Int()
			cancel()

			switch {
			case err != nil && time.Now().Before(deadline):
				log.Printf("error refreshing lock %s: %v", l.locker.key, err)
			case err != nil:
				log.Printf("lock %s was lost, no refresh succeeded within %v: %v", l.locker.key, l.locker.ttl, err)
				close(l.lost)
				return
			case n == 0:
				log.Printf("lock %s was lost", l.locker.key)
				close(l.lost)
				return
			default:
				deadline = time.Now().Add(l.locker.ttl)
			}
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()

		var n int
		n, err = releaseScript.Run(ctx, l.locker.client, []string{l.locker.key}, l.token).Int()
		if err != nil {
			err = fmt.Errorf("error releasing lock %s: %w", l.locker.key, err)
			return
		}
		if n == 0 {
			err = ErrLeaseLost
		}
	})
	return err
}
