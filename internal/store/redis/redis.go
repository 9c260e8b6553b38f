package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	rcomponent "github.com/pwa-builder/PWABuilder-sub006/internal/component/redis"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	readTimeout   = 15 * time.Second
	writeTimeout  = 15 * time.Second
	popTimeout    = 10 * time.Second
	healthTimeout = 3 * time.Second
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var (
	rs        *RedisStore
	once      sync.Once
	initError error
)

func NewRedisStore(ctx context.Context) (store.Store, error) {
	once.Do(func() {
		cfg, err := config.GetRedisConfig()
		if err != nil {
			initError = err
			return
		}
		rc, err := rcomponent.NewRedisClient(ctx)
		if err != nil {
			initError = err
			return
		}
		rs = &RedisStore{
			client: rc,
			ttl:    time.Duration(cfg.JOB_TTL_DAYS) * 24 * time.Hour,
		}
	})
	if initError != nil {
		return nil, initError
	}
	return rs, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) store.Store {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Enqueue(ctx context.Context, key string, value interface{}) (int64, error) {
	ctx, span := startSpan(ctx, "Redis/Enqueue", key)
	defer span.End()

	b, err := encode(key, value)
	if err != nil {
		util.RecordSpanError(span, err)
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	n, err := r.client.RPush(ctx, key, b).Result()
	if err != nil {
		err = fmt.Errorf("failed to push to list %s: %w", key, err)
		util.RecordSpanError(span, err)
		return 0, err
	}
	return n, nil
}

// value must be non-nil pointer to destination type
func (r *RedisStore) Dequeue(ctx context.Context, key string, out interface{}) (bool, error) {
	ctx, span := startSpan(ctx, "Redis/Dequeue", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return false, store.ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, popTimeout)
	defer cancel()

	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to pop from list %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		err = fmt.Errorf("failed to unmarshal list entry from %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	return true, nil
}

func (r *RedisStore) QueueLength(ctx context.Context, key string) (int64, error) {
	ctx, span := startSpan(ctx, "Redis/QueueLength", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return 0, store.ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		util.RecordSpanError(span, err)
		return 0, err
	}
	return n, nil
}

// value must be non-nil pointer to destination type
func (r *RedisStore) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	ctx, span := startSpan(ctx, "Redis/Get", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return false, store.ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to retrieve value for key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		err = fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	return true, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, span := startSpan(ctx, "Redis/Save", key)
	defer span.End()

	b, err := encode(key, value)
	if err != nil {
		util.RecordSpanError(span, err)
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		err = fmt.Errorf("failed to save key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return err
	}
	return nil
}

func (r *RedisStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) GetDefaultTTL() time.Duration {
	return r.ttl
}

func (r *RedisStore) ShutDown(ctx context.Context) {
	_ = r.client.Close()
}

func startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, name)
	span.AddEvent("redis.context",
		trace.WithAttributes(attribute.String("key", key)),
	)
	return ctx, span
}

func encode(key string, value interface{}) ([]byte, error) {
	if key == "" {
		return nil, store.ErrEmptyKey
	}
	if value == nil {
		return nil, store.ErrNilValue
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	return b, nil
}
