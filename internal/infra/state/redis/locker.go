package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultLockTTL   = 10 * time.Second
	lockRetryBackoff = 20 * time.Millisecond
)

// unlockScript 只删除仍属于自己的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RoomLocker 是基于 Redis SET NX PX 的分布式锁，多个实例共享同一组 key。
type RoomLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRoomLocker 创建 RoomLocker。ttl 是锁的最长持有时间，持有者崩溃后锁会自动过期。
func NewRoomLocker(client *redis.Client, keyPrefix string, ttl time.Duration) *RoomLocker {
	if client == nil {
		panic("redis client cannot be nil for RoomLocker")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RoomLocker{client: client, keyPrefix: normalizePrefix(keyPrefix), ttl: ttl}
}

func (l *RoomLocker) lockKey(key string) string {
	return l.keyPrefix + "lock:" + key
}

// Lock 阻塞直到获得锁或 ctx 结束
func (l *RoomLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.lockKey(key)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: failed to acquire lock %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// 使用独立的 context，请求取消后仍然要释放锁
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("key", redisKey).Warn("redis: failed to release lock")
		}
	}, nil
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return "rooms:"
	}
	return prefix
}
