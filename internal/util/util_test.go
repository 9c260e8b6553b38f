package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGetJobQueueKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		production bool
		want       string
	}{
		{"production", true, "googleplaypackagejobs-prod"},
		{"non production", false, "googleplaypackagejobs-nonprod"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, GetJobQueueKey(tt.production))
		})
	}
}

func TestGetJobID(t *testing.T) {
	t.Parallel()
	require.Equal(t, "googleplaypackagejob:webboard.app:a1b2c3", GetJobID("webboard.app", "a1b2c3"))
}

func TestBlobSafeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"job id", "googleplaypackagejob:webboard.app:a1b2c3", "googleplaypackagejob-webboardapp-a1b2c3"},
		{"whitespace collapses", "my  app\tname", "my-app-name"},
		{"port in host", "googleplaypackagejob:localhost:8080:zz", "googleplaypackagejob-localhost-8080-zz"},
		{"unicode dropped", "appé_1", "app_1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, BlobSafeName(tt.input))
		})
	}
}

func TestDownloadFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		host string
		want string
	}{
		{"plain host", "webboard.app", "webboard.app - Google Play Package.zip"},
		{"host with port", "localhost:3000", "localhost_3000 - Google Play Package.zip"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, DownloadFileName(tt.host))
		})
	}
}

func TestNormalizeSlashes(t *testing.T) {
	t.Parallel()
	require.Equal(t, "C:/Users/app/Temp/pwabuilder-cloudapk-1", NormalizeSlashes(`C:\Users\app\Temp\pwabuilder-cloudapk-1`))
	require.Equal(t, "/tmp/pwabuilder-cloudapk-1", NormalizeSlashes("/tmp/pwabuilder-cloudapk-1"))
}

func TestRecordSpanError(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	_, span := tp.Tracer("test").Start(t.Context(), "op")
	RecordSpanError(span, errors.New("boom"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "boom", ended[0].Status().Description)
}
