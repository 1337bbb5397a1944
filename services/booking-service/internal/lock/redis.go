package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLocker is a Locker shared by every instance of the service. Each lock
// is a key holding a random token with a TTL, so a crashed holder cannot
// wedge a doctor's calendar for longer than TTL.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisLockerConfig struct {
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(rdb *redis.Client, cfg RedisLockerConfig) *RedisLocker {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 25 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: cfg.TTL, retry: cfg.Retry}
}

var ErrNotAcquired = errors.New("lock not acquired")

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + ":" + key
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.rdb, []string{redisKey}, token).Err()
		})
	}, nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
