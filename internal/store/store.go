package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey = errors.New("key cannot be empty")
	ErrNilValue = errors.New("value cannot be nil")
	ErrClosed   = errors.New("store is closed")
)

// Store is the durable queue store shared by the web front end and the
// workers. Lists are FIFO: Enqueue pushes at the tail, Dequeue pops the head.
type Store interface {
	// Enqueue appends value to the list at key and returns the new length.
	Enqueue(ctx context.Context, key string, value interface{}) (int64, error)
	// Dequeue pops the head of the list at key into out. It returns false
	// when the list is empty.
	Dequeue(ctx context.Context, key string, out interface{}) (bool, error)
	QueueLength(ctx context.Context, key string) (int64, error)
	// GetJSON loads the value saved at key into out. It returns false when
	// the key does not exist or expired.
	GetJSON(ctx context.Context, key string, out interface{}) (bool, error)
	Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	HealthCheck(ctx context.Context) error
	GetDefaultTTL() time.Duration
	ShutDown(ctx context.Context)
}
