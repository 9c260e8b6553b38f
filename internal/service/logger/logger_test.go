package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	var global, scoped bytes.Buffer
	prev := Log
	Log = zerolog.New(&global)
	t.Cleanup(func() { Log = prev })

	tests := []struct {
		name    string
		ctx     context.Context
		wantIn  *bytes.Buffer
		wantOut *bytes.Buffer
	}{
		{"falls back to global logger", context.Background(), &global, &scoped},
		{"uses logger stored in ctx", WithContext(context.Background(), zerolog.New(&scoped)), &scoped, &global},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			global.Reset()
			scoped.Reset()

			log := FromContext(tt.ctx)
			log.Warn().Str("id", "job-1").Msg("package download interrupted")

			require.Contains(t, tt.wantIn.String(), `"message":"package download interrupted"`)
			require.Contains(t, tt.wantIn.String(), `"level":"warn"`)
			require.Empty(t, tt.wantOut.String())
		})
	}
}

func TestForJob(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), zerolog.New(&buf))

	ctx, log := ForJob(ctx, "googleplaypackagejob:webboard.app:abc123")
	log.Info().Msg("processing")
	require.Contains(t, buf.String(), `"id":"googleplaypackagejob:webboard.app:abc123"`)

	buf.Reset()
	fromCtx := FromContext(ctx)
	fromCtx.Error().Msg("failed")
	require.Contains(t, buf.String(), `"id":"googleplaypackagejob:webboard.app:abc123"`)
	require.Contains(t, buf.String(), `"level":"error"`)
}
