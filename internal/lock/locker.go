package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"contracthub/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout 在截止时间前未能获取锁
var ErrLockTimeout = errors.New("lock: acquire timeout")

// Locker 按键互斥的锁
// Lock 阻塞直到获取锁或 ctx 结束，返回的 unlock 可重复调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker 进程内按键互斥锁
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock 获取键对应的锁
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()

	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}
	metrics.LockWaitDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// releaseScript 仅当值匹配时删除，避免释放他人持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 Redis 的跨实例锁
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker 创建 Redis 锁
// ttl 为锁的最长持有时间，持有者异常退出后锁自动过期
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: "contracthub:lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Lock 获取键对应的锁
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}
	start := time.Now()
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
	metrics.LockWaitDuration.WithLabelValues("redis").Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
		})
	}, nil
}
