package component

import (
	"context"
	"testing"

	"github.com/pwa-builder/PWABuilder-sub006/internal/service/telemetry"
	"github.com/stretchr/testify/require"
)

func TestGetStore(t *testing.T) {
	s, err := GetStore(context.Background(), "memory")
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = GetStore(context.Background(), "etcd")
	require.Error(t, err)
}

func TestGetStorage(t *testing.T) {
	t.Setenv("LOCAL_STORAGE_DIR", t.TempDir())
	s, err := GetStorage("local")
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = GetStorage("azure")
	require.Error(t, err)
}

func TestGetTelemetry(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		expectErr bool
	}{
		{"none is noop", "none", false},
		{"empty is noop", "", false},
		{"unknown fails", "appinsights", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, err := GetTelemetry(tt.kind)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.IsType(t, telemetry.Noop{}, tel)
		})
	}
}

func TestGetPackager(t *testing.T) {
	t.Setenv("PROJECT_GENERATOR", "")
	_, _, err := GetPackager()
	require.Error(t, err)

	t.Setenv("PROJECT_GENERATOR", "npx @bubblewrap/cli")
	t.Setenv("CLEANUP_ROOT", t.TempDir())
	p, lm, err := GetPackager()
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Zero(t, lm.Pending())
}
