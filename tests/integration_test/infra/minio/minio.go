package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	minioSDK "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	rootUser     = "pwabuilder"
	rootPassword = "pwabuilder-secret"

	// PackageBucket holds the uploaded package zips in integration tests.
	PackageBucket = "pwabuilder-packages"
)

// SetupContainer starts a MinIO server and returns it with its host:port.
func SetupContainer(ctx context.Context) (testcontainers.Container, string) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     rootUser,
				"MINIO_ROOT_PASSWORD": rootPassword,
			},
			Cmd: []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").
				WithPort("9000").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		panic(fmt.Errorf("failed to start minio container: %w", err))
	}

	endpoint, err := c.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		panic(fmt.Errorf("failed to resolve minio endpoint: %w", err))
	}
	return c, endpoint
}

// SetMinioEnv points the minio storage config at endpoint and PackageBucket.
func SetMinioEnv(endpoint string) {
	os.Setenv("STORAGE_TYPE", "minio")
	os.Setenv("MINIO_ENDPOINT", endpoint)
	os.Setenv("MINIO_ACCESS_KEY", rootUser)
	os.Setenv("MINIO_SECRET_KEY", rootPassword)
	os.Setenv("MINIO_USE_SSL", "false")
	os.Setenv("MINIO_JOBS_BUCKET", PackageBucket)
}

// CreatePackageBucket makes sure PackageBucket exists on endpoint.
func CreatePackageBucket(t *testing.T, endpoint string) {
	t.Helper()
	ctx := context.Background()

	client, err := minioSDK.New(endpoint, &minioSDK.Options{
		Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
	})
	require.NoError(t, err)

	exists, err := client.BucketExists(ctx, PackageBucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, PackageBucket, minioSDK.MakeBucketOptions{}))
	}
}
