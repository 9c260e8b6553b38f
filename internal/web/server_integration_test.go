//go:build integration
// +build integration

package web

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pwa-builder/PWABuilder-sub006/internal/component"
	"github.com/pwa-builder/PWABuilder-sub006/internal/lifecycle"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/telemetry"
	"github.com/pwa-builder/PWABuilder-sub006/internal/worker"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	tminio "github.com/pwa-builder/PWABuilder-sub006/tests/integration_test/infra/minio"
	tredis "github.com/pwa-builder/PWABuilder-sub006/tests/integration_test/infra/redis"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var (
	redisContainer testcontainers.Container
	REDIS_ENDPOINT string
	minioContainer testcontainers.Container
	MINIO_ENDPOINT string
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}
	ctx := context.Background()
	redisContainer, REDIS_ENDPOINT = tredis.SetupContainer(ctx)
	minioContainer, MINIO_ENDPOINT = tminio.SetupContainer(ctx)

	code := m.Run()
	_ = redisContainer.Terminate(ctx)
	_ = minioContainer.Terminate(ctx)
	os.Exit(code)
}

func setServerEnv(t *testing.T) {
	t.Setenv("SERVICE_NAME", "pwabuilder-cloudapk")
	t.Setenv("STORE_TYPE", "redis")
	t.Setenv("STORAGE_TYPE", "minio")
	t.Setenv("REDIS_ENDPOINT", REDIS_ENDPOINT)
	t.Setenv("JOB_TTL_DAYS", "1")
	tminio.SetMinioEnv(MINIO_ENDPOINT)
	tminio.CreatePackageBucket(t, MINIO_ENDPOINT)
}

// TestEnqueueProcessDownload drives a job from the HTTP front end through
// the worker and back out of blob storage.
func TestEnqueueProcessDownload(t *testing.T) {
	ctx := context.Background()
	setServerEnv(t)

	st, err := component.GetStore(ctx, "redis")
	require.NoError(t, err)
	blobs, err := component.GetStorage("minio")
	require.NoError(t, err)

	jobs := jobservice.New(st, false)
	recorder := &telemetry.Recorder{}
	srv := NewServer(jobs, blobs, recorder)

	dir := t.TempDir()
	packager := packagerFunc(func(ctx context.Context, opts model.PackagingOptions, progress func(string)) (string, error) {
		progress("Building APK...")
		path := filepath.Join(dir, lifecycle.Prefix+opts.PackageID+lifecycle.ZipSuffix)
		return path, os.WriteFile(path, []byte("zip:"+opts.PackageID), 0644)
	})
	w := worker.New(jobs, packager, blobs, recorder)

	req := httptest.NewRequest(http.MethodPost, "/enqueuePackageJob", bytes.NewReader(body(t, options())))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Body.String()

	tests := []struct {
		name     string
		before   func(t *testing.T)
		target   string
		wantCode int
		wantBody string
	}{
		{
			name:     "queued job is not downloadable",
			target:   "/downloadPackageZip?id=" + id,
			wantCode: http.StatusBadRequest,
			wantBody: "Current status: Queued",
		},
		{
			name:     "status is visible",
			target:   "/getPackageJob?id=" + id,
			wantCode: http.StatusOK,
			wantBody: `"status":"Queued"`,
		},
		{
			name: "completed job downloads",
			before: func(t *testing.T) {
				processed, err := w.ProcessNext(ctx)
				require.NoError(t, err)
				require.True(t, processed)
			},
			target:   "/downloadPackageZip?id=" + id,
			wantCode: http.StatusOK,
			wantBody: "zip:app.webboard",
		},
		{
			name:     "completed status",
			target:   "/getPackageJob?id=" + id,
			wantCode: http.StatusOK,
			wantBody: `"status":"Completed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.before != nil {
				tt.before(t)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			require.Equal(t, tt.wantCode, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}

	evs := recorder.Events()
	require.Len(t, evs, 1)
	require.Equal(t, telemetry.PackageEvent, evs[0].Name)
}
