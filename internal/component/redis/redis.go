package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	ReadTimeout  = 15 * time.Second
	WriteTimeout = 15 * time.Second
	DialTimeout  = 10 * time.Second
)

var (
	rc        *redis.Client
	once      sync.Once
	initError error
)

// NewRedisClient returns the process wide redis client. Reconnection after a
// dropped connection is handled by the client with bounded exponential
// backoff between MinRetryBackoff and MaxRetryBackoff.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {

	once.Do(func() {
		config, err := config.GetRedisConfig()
		if err != nil {
			initError = err
			return
		}

		opts := &redis.Options{
			Addr:            config.URL,
			Password:        config.ClientPassword,
			DB:              0,
			DialTimeout:     DialTimeout,
			ReadTimeout:     ReadTimeout,
			WriteTimeout:    WriteTimeout,
			PoolSize:        50,
			MinIdleConns:    10,
			PoolTimeout:     1 * time.Second,
			MaxRetries:      5,
			MinRetryBackoff: 100 * time.Millisecond,
			MaxRetryBackoff: 3 * time.Second,
			ConnMaxIdleTime: 10 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		}
		if config.USE_TLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rc = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		err = rc.Ping(ctx).Err()
		if err != nil {
			initError = fmt.Errorf("failed to connect to redis: %v", err)
			return
		}
	})

	return rc, initError
}

func ResetRedisClient() {
	rc = nil
	once = sync.Once{}
	initError = nil
}
