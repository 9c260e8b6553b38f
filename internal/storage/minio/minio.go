package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"go.opentelemetry.io/otel/attribute"
)

// MinioClient wraps the MinIO SDK client.
type MinioClient struct {
	client    *minio.Client
	bucket    string
	transport *http.Transport
}

var (
	m         *MinioClient
	once      sync.Once
	initError error
)

// NewMinioClient initializes and returns the process wide MinIO client.
func NewMinioClient() (storage.Storage, error) {
	once.Do(func() {
		cfg, err := config.GetMinioConfig()
		if err != nil {
			initError = err
			return
		}

		transport := &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   50,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       120 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,

			DisableCompression: true,
			DisableKeepAlives:  false,
		}

		cli, err := minio.New(cfg.URL, &minio.Options{
			Creds:     credentials.NewStaticV4(cfg.ACCESS_KEY, cfg.SECRET_KEY, ""),
			Secure:    cfg.USE_SSL,
			Transport: transport,
		})
		if err != nil {
			initError = err
			return
		}
		m = &MinioClient{client: cli, bucket: cfg.JOBS_BUCKET, transport: transport}
	})
	if initError != nil {
		return nil, initError
	}
	return m, nil
}

// Upload stores a package archive in the jobs bucket.
func (c *MinioClient) Upload(ctx context.Context, localPath string, name string) (string, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "MinIO/Upload")
	defer span.End()

	blobName := util.BlobSafeName(name)
	if blobName == "" {
		err := fmt.Errorf("blob name cannot be empty")
		util.RecordSpanError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("blob", blobName))

	info, err := c.client.FPutObject(ctx, c.bucket, blobName, localPath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		err = fmt.Errorf("failed to upload %s: %w", blobName, err)
		util.RecordSpanError(span, err)
		return "", err
	}
	logger.Log.Info().Str("blob", blobName).Int64("size", info.Size).Msg("uploaded package archive")
	return blobName, nil
}

// Download opens a package archive for streaming.
func (c *MinioClient) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "MinIO/Download")
	defer span.End()

	object, err := c.client.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}

	// check if the object exists
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, storage.ErrNotFound
		}
		util.RecordSpanError(span, err)
		return nil, err
	}
	return object, nil
}

func (c *MinioClient) ShutDown(ctx context.Context) {
	c.transport.CloseIdleConnections()
}
