package packaging

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"forbidden", errors.New("Failed to download icon https://webboard.app/icon.png. Responded with status 403"), true},
		{"connection refused", errors.New("connect ECONNREFUSED 10.0.0.1:443"), true},
		{"dns failure", errors.New("getaddrinfo ENOTFOUND webboard.app"), true},
		{"wrapped", fmt.Errorf("generate project: %w", errors.New("status 403")), true},
		{"gradle failure", errors.New("gradle assembleRelease exited with status 1"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestMarkTransient(t *testing.T) {
	t.Parallel()

	err := MarkTransient(errors.New("status 403"))
	require.Equal(t, KindTransient, KindOf(err))
	require.True(t, IsRetryable(err))
	require.EqualError(t, err, "status 403")

	again := MarkTransient(err)
	require.Same(t, err, again)

	plain := errors.New("exit status 1")
	require.Same(t, plain, MarkTransient(plain))
}

func TestRewriteForFallback(t *testing.T) {
	t.Parallel()

	opts := webboardOptions()
	opts.MaskableIconURL = "https://webboard.app/maskable icon.png"
	opts.MonochromeIconURL = ""

	got := RewriteForFallback(opts)

	require.Equal(t,
		"https://pwabuilder.com/api/images/getsafeimageforanalysis?imageUrl=https%3A%2F%2Fwebboard.app%2Fassets%2Ficons%2Ficon_512.png",
		got.IconURL)
	require.Equal(t,
		"https://pwabuilder.com/api/images/getsafeimageforanalysis?imageUrl=https%3A%2F%2Fwebboard.app%2Fmanifest.json",
		got.WebManifestURL)
	require.Equal(t,
		"https://pwabuilder.com/api/images/getsafeimageforanalysis?imageUrl=https%3A%2F%2Fwebboard.app%2Fmaskable%20icon.png",
		got.MaskableIconURL)
	require.Empty(t, got.MonochromeIconURL)

	// untouched fields and the input itself
	require.Equal(t, opts.StartURL, got.StartURL)
	require.Equal(t, "https://webboard.app/assets/icons/icon_512.png", opts.IconURL)
}
