package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestLocalFS_UploadDownload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := &LocalFS{Root: root}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "pwabuilder-cloudapk-1.zip")
	require.NoError(t, os.WriteFile(src, []byte("archive"), 0644))

	name, err := l.Upload(ctx, src, "googleplaypackagejob:webboard.app:abc123")
	require.NoError(t, err)
	require.Equal(t, "googleplaypackagejob-webboardapp-abc123", name)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	rc, err := l.Download(ctx, name)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "archive", string(b))
}

func TestLocalFS_Errors(t *testing.T) {
	t.Parallel()

	l := &LocalFS{Root: t.TempDir()}
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		is   error
	}{
		{
			name: "download missing blob",
			run: func() error {
				_, err := l.Download(ctx, "missing")
				return err
			},
			is: storage.ErrNotFound,
		},
		{
			name: "download cannot escape root",
			run: func() error {
				_, err := l.Download(ctx, "../../etc/passwd")
				return err
			},
			is: storage.ErrNotFound,
		},
		{
			name: "upload missing source",
			run: func() error {
				_, err := l.Upload(ctx, filepath.Join(t.TempDir(), "nope.zip"), "name")
				return err
			},
		},
		{
			name: "upload unusable name",
			run: func() error {
				src := filepath.Join(t.TempDir(), "a.zip")
				require.NoError(t, os.WriteFile(src, []byte("a"), 0644))
				_, err := l.Upload(ctx, src, "ééé")
				return err
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			if tt.is != nil {
				require.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestNewLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	t.Setenv("LOCAL_STORAGE_DIR", dir)

	s, err := NewLocalFS()
	require.NoError(t, err)
	require.NotNil(t, s)
	_, err = os.Stat(dir)
	require.NoError(t, err)

	t.Setenv("LOCAL_STORAGE_DIR", "")
	_, err = NewLocalFS()
	require.Error(t, err)
}
