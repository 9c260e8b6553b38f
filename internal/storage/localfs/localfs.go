package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
)

// LocalFS keeps package archives in a directory on the local disk. It is used
// for development and single node deployments.
type LocalFS struct {
	Root string
}

func NewLocalFS() (storage.Storage, error) {
	cfg, err := config.GetLocalStorageConfig()
	if err != nil {
		return nil, err
	}
	if err := util.EnsureDirExist(cfg.DIR); err != nil {
		return nil, err
	}
	return &LocalFS{Root: cfg.DIR}, nil
}

func (l *LocalFS) Upload(ctx context.Context, localPath string, name string) (string, error) {
	_, span := job_tracer.GetTracer().Start(ctx, "LocalFS/Upload")
	defer span.End()

	blobName := util.BlobSafeName(name)
	if blobName == "" {
		err := fmt.Errorf("blob name cannot be empty")
		util.RecordSpanError(span, err)
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		util.RecordSpanError(span, err)
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(l.Root, blobName+".*.partial")
	if err != nil {
		util.RecordSpanError(span, err)
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		util.RecordSpanError(span, err)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		util.RecordSpanError(span, err)
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.Root, blobName)); err != nil {
		os.Remove(tmp.Name())
		util.RecordSpanError(span, err)
		return "", err
	}
	return blobName, nil
}

func (l *LocalFS) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	clean := filepath.Base(filepath.Clean(name))
	f, err := os.Open(filepath.Join(l.Root, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l *LocalFS) ShutDown(ctx context.Context) {}
