package db

import (
	"context"
	"fmt"
	"os"

	"github.com/pwa-builder/PWABuilder-sub006/internal/db"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer starts Postgres, points POSTGRES_URL at it and returns a
// connected DB with the audit schema applied.
func SetupContainer(ctx context.Context) (testcontainers.Container, *db.DB, string) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "cloudapk",
			"POSTGRES_PASSWORD": "cloudapk123",
			"POSTGRES_DB":       "cloudapk",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		panic(err)
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")

	POSTGRES_URL := fmt.Sprintf(
		"postgres://cloudapk:cloudapk123@%s:%s/cloudapk?sslmode=disable",
		host,
		port.Port(),
	)

	os.Setenv("POSTGRES_URL", POSTGRES_URL)

	d, err := db.New(ctx)
	if err != nil {
		panic(err)
	}
	if err := d.EnsureSchema(ctx); err != nil {
		panic(err)
	}
	return container, d, POSTGRES_URL
}
