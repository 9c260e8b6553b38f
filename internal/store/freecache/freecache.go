package freecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	fc "github.com/coocood/freecache"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store"
	"github.com/vmihailenco/msgpack/v5"
)

// FreeCacheStore is the in-process fallback store used for single node and
// development runs. Key/value entries live in freecache, lists in memory.
type FreeCacheStore struct {
	cache  *fc.Cache
	ttl    time.Duration
	mu     sync.Mutex
	lists  map[string][][]byte
	closed bool
}

var (
	fcs       *FreeCacheStore
	once      sync.Once
	initError error
)

func NewFreeCacheStore() (store.Store, error) {
	once.Do(func() {
		cfg, err := config.GetFreeCacheConfig()
		if err != nil {
			initError = err
			return
		}
		fcs = New(cfg.SIZE_BYTES, time.Duration(cfg.JOB_TTL_DAYS)*24*time.Hour)
	})
	if initError != nil {
		return nil, initError
	}
	return fcs, nil
}

func New(sizeBytes int, ttl time.Duration) *FreeCacheStore {
	return &FreeCacheStore{
		cache: fc.NewCache(sizeBytes),
		ttl:   ttl,
		lists: make(map[string][][]byte),
	}
}

func (c *FreeCacheStore) Enqueue(ctx context.Context, key string, value interface{}) (int64, error) {
	data, err := encode(key, value)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, store.ErrClosed
	}
	c.lists[key] = append(c.lists[key], data)
	return int64(len(c.lists[key])), nil
}

func (c *FreeCacheStore) Dequeue(ctx context.Context, key string, out interface{}) (bool, error) {
	if key == "" {
		return false, store.ErrEmptyKey
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, store.ErrClosed
	}
	l := c.lists[key]
	if len(l) == 0 {
		c.mu.Unlock()
		return false, nil
	}
	data := l[0]
	l[0] = nil
	c.lists[key] = l[1:]
	c.mu.Unlock()

	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal list entry from %s: %w", key, err)
	}
	return true, nil
}

func (c *FreeCacheStore) QueueLength(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, store.ErrEmptyKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.lists[key])), nil
}

func (c *FreeCacheStore) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	if key == "" {
		return false, store.ErrEmptyKey
	}
	data, err := c.cache.Get([]byte(key))
	if errors.Is(err, fc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}
	return true, nil
}

func (c *FreeCacheStore) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	if c.isClosed() {
		return store.ErrClosed
	}
	return c.cache.Set([]byte(key), data, int(ttl/time.Second))
}

func (c *FreeCacheStore) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return store.ErrClosed
	}
	return nil
}

func (c *FreeCacheStore) GetDefaultTTL() time.Duration {
	return c.ttl
}

func (c *FreeCacheStore) ShutDown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.lists = make(map[string][][]byte)
	c.cache.Clear()
}

func (c *FreeCacheStore) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func encode(key string, value interface{}) ([]byte, error) {
	if key == "" {
		return nil, store.ErrEmptyKey
	}
	if value == nil {
		return nil, store.ErrNilValue
	}
	b, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	return b, nil
}
