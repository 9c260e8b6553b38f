package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer starts a Redis server with append-only persistence, the
// mode the job queue runs against, and returns it with its host:port.
func SetupContainer(ctx context.Context) (testcontainers.Container, string) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			Cmd:          []string{"redis-server", "--appendonly", "yes"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		panic(fmt.Errorf("failed to start redis container: %w", err))
	}

	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		panic(fmt.Errorf("failed to resolve redis endpoint: %w", err))
	}
	return c, endpoint
}

// SetRedisEnv selects the redis job store at endpoint with a ttl of days.
func SetRedisEnv(endpoint string, ttlDays int) {
	os.Setenv("STORE_TYPE", "redis")
	os.Setenv("REDIS_ENDPOINT", endpoint)
	os.Setenv("JOB_TTL_DAYS", fmt.Sprint(ttlDays))
}
