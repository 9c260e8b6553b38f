package storage

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// Storage is the sink for finished package archives.
type Storage interface {
	// Upload stores the file at localPath under a blob safe form of name and
	// returns the stored name.
	Upload(ctx context.Context, localPath string, name string) (string, error)
	// Download opens the blob returned by Upload. Callers close the reader.
	Download(ctx context.Context, name string) (io.ReadCloser, error)
	ShutDown(ctx context.Context)
}
