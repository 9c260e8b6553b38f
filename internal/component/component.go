package component

import (
	"context"
	"fmt"

	"github.com/pwa-builder/PWABuilder-sub006/internal/artifact"
	"github.com/pwa-builder/PWABuilder-sub006/internal/db"
	"github.com/pwa-builder/PWABuilder-sub006/internal/db/repository"
	"github.com/pwa-builder/PWABuilder-sub006/internal/lifecycle"
	"github.com/pwa-builder/PWABuilder-sub006/internal/pipeline"
	packageservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/package_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/telemetry"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage/localfs"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage/minio"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store/freecache"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store/jetstream"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store/redis"
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain"
)

func GetStore(ctx context.Context, storeType string) (store.Store, error) {
	switch storeType {
	case "redis":
		return redis.NewRedisStore(ctx)
	case "memory":
		return freecache.NewFreeCacheStore()
	case "jetstream":
		return jetstream.NewJetStreamStore()
	default:
		return nil, fmt.Errorf("unknown store type %q", storeType)
	}
}

func GetStorage(storageType string) (storage.Storage, error) {
	switch storageType {
	case "minio":
		return minio.NewMinioClient()
	case "local":
		return localfs.NewLocalFS()
	default:
		return nil, fmt.Errorf("unknown storage type %q", storageType)
	}
}

func GetTelemetry(telemetryType string) (telemetry.Telemetry, error) {
	switch telemetryType {
	case "nats":
		return telemetry.NewNatsTelemetry()
	case "none", "":
		return telemetry.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry type %q", telemetryType)
	}
}

// GetAuditRepository connects to Postgres and applies the audit schema. The
// caller closes the returned DB.
func GetAuditRepository(ctx context.Context) (*repository.JobRepository, *db.DB, error) {
	d, err := db.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := d.EnsureSchema(ctx); err != nil {
		d.Close()
		return nil, nil, err
	}
	return repository.NewJobRepository(d), d, nil
}

// GetPackager wires the external toolchain, the pipeline, the assembler and a
// lifecycle manager from the environment. The caller starts and shuts down
// the returned manager.
func GetPackager() (*packageservice.Packager, *lifecycle.Manager, error) {
	tc, err := toolchain.NewCLIFromEnv()
	if err != nil {
		return nil, nil, err
	}
	lm, err := lifecycle.NewFromConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := artifact.New()
	if err != nil {
		return nil, nil, err
	}
	p := pipeline.New(tc, pipeline.WithInspector(toolchain.NewAPKInspector()))
	return packageservice.New(p, a, lm), lm, nil
}
