// Package lock keeps two replicas from sweeping at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by TryAcquire when another holder owns the lock.
var ErrHeld = errors.New("lock: held by another runner")

const (
	DefaultKey = "expirywatch:sweep"
	DefaultTTL = 5 * time.Minute
)

type Config struct {
	Driver   string // none | redis
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// Locker grants exclusive sweep runs. release must be called once the run ends.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (release func(), err error)
	Close() error
}

// Open returns the configured Locker. Driver "none" (or empty) gives a
// process-local lock.
func Open(cfg Config) (Locker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none", "local":
		return NewLocal(), nil
	case "redis":
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, errors.New("lock.addr is required for redis driver")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return NewRedis(rdb, cfg.Key, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis builds a SET NX PX lock. The TTL bounds how long a crashed holder
// can block others.
func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) Locker {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisLocker{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (l *redisLocker) TryAcquire(ctx context.Context, name string) (func(), error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: redis: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}

func (l *redisLocker) Close() error { return l.rdb.Close() }
