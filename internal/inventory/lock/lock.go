package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-retail-loader/pkg/cache"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrLockTimeout = errors.New("lock: key busy, try again later")

// Locker serializes work on one inventory key. The returned func releases
// the key and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Key is the lock key for one (store, sku) inventory row.
func Key(storeID int64, sku string) string {
	return fmt.Sprintf("lock:inventory:%d:%s", storeID, sku)
}

// LockAll takes every key in sorted order so two callers sharing keys can
// never wait on each other in a cycle. Duplicate keys are taken once.
func LockAll(ctx context.Context, l Locker, keys []string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		unlock, err := l.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// KeyedMutex is an in-process Locker. Entries are dropped once no caller
// holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*entry{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

type RedisConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

// RedisLocker shares keys across processes. It gives up with ErrLockTimeout
// after Retries attempts instead of blocking.
type RedisLocker struct {
	cache  *cache.RedisClient
	cfg    RedisConfig
	logger logger.ZapLogger
}

func NewRedisLocker(c *cache.RedisClient, cfg RedisConfig, log logger.ZapLogger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &RedisLocker{cache: c, cfg: cfg, logger: log}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	value := uuid.New().String()

	acquired := false
	for i := 0; i < r.cfg.Retries; i++ {
		ok, err := r.cache.AcquireLock(ctx, key, value, r.cfg.TTL)
		if err != nil {
			r.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		if i == r.cfg.Retries-1 {
			break
		}
		select {
		case <-time.After(r.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	return func() {
		// The caller's context may already be done; the key must still go.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.cache.ReleaseLock(ctx, key, value); err != nil {
			r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
