package packaging

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/pwa-builder/PWABuilder-sub006/model"
	"github.com/stretchr/testify/require"
)

func icon(src, purpose string) model.ManifestIcon {
	return model.ManifestIcon{Src: src, Sizes: "96x96", Purpose: purpose}
}

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"https://webboard.app", "webboard.app"},
		{"https://webboard.app/", "webboard.app"},
		{"https://ics.hutton.ac.uk/gridscore/", "ics.hutton.ac.uk/gridscore"},
		{"webboard.app", "webboard.app"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeHost(tt.in), tt.in)
	}
}

func TestBuildShortcuts(t *testing.T) {
	t.Parallel()

	const manifest = "https://webboard.app/app/manifest.json"

	tests := []struct {
		name      string
		shortcuts []model.ManifestShortcut
		want      []TwaShortcut
	}{
		{
			name: "shortcut without icons is dropped",
			shortcuts: []model.ManifestShortcut{
				{Name: "New board", URL: "/new"},
				{Name: "Open", URL: "/open", Icons: []model.ManifestIcon{icon("open.png", "")}},
			},
			want: []TwaShortcut{
				{Name: "Open", ShortName: "Open", URL: "https://webboard.app/open", ChosenIconURL: "https://webboard.app/app/open.png"},
			},
		},
		{
			name: "only maskable icon is dropped",
			shortcuts: []model.ManifestShortcut{
				{Name: "New", URL: "/new", Icons: []model.ManifestIcon{icon("new.png", "maskable")}},
			},
			want: []TwaShortcut{},
		},
		{
			name: "missing url or names is dropped",
			shortcuts: []model.ManifestShortcut{
				{Name: "No url", Icons: []model.ManifestIcon{icon("a.png", "any")}},
				{URL: "/nameless", Icons: []model.ManifestIcon{icon("a.png", "any")}},
			},
			want: []TwaShortcut{},
		},
		{
			name: "short name falls back to truncated name",
			shortcuts: []model.ManifestShortcut{
				{Name: "Create a brand new board", URL: "new?src=shortcut", Icons: []model.ManifestIcon{icon("/icons/new.png", "any maskable")}},
				{ShortName: "Recent", URL: "https://other.example/recent", Icons: []model.ManifestIcon{icon("recent.png", "any")}},
			},
			want: []TwaShortcut{
				{Name: "Create a brand new board", ShortName: "Create a bra", URL: "https://webboard.app/app/new?src=shortcut", ChosenIconURL: "https://webboard.app/icons/new.png"},
				{Name: "Recent", ShortName: "Recent", URL: "https://other.example/recent", ChosenIconURL: "https://webboard.app/app/recent.png"},
			},
		},
		{
			name: "more than four valid entries is truncated",
			shortcuts: []model.ManifestShortcut{
				{Name: "1", URL: "/1", Icons: []model.ManifestIcon{icon("1.png", "")}},
				{Name: "2", URL: "/2", Icons: []model.ManifestIcon{icon("2.png", "")}},
				{Name: "bad", URL: "/bad"},
				{Name: "3", URL: "/3", Icons: []model.ManifestIcon{icon("3.png", "")}},
				{Name: "4", URL: "/4", Icons: []model.ManifestIcon{icon("4.png", "")}},
				{Name: "5", URL: "/5", Icons: []model.ManifestIcon{icon("5.png", "")}},
			},
			want: []TwaShortcut{
				{Name: "1", ShortName: "1", URL: "https://webboard.app/1", ChosenIconURL: "https://webboard.app/app/1.png"},
				{Name: "2", ShortName: "2", URL: "https://webboard.app/2", ChosenIconURL: "https://webboard.app/app/2.png"},
				{Name: "3", ShortName: "3", URL: "https://webboard.app/3", ChosenIconURL: "https://webboard.app/app/3.png"},
				{Name: "4", ShortName: "4", URL: "https://webboard.app/4", ChosenIconURL: "https://webboard.app/app/4.png"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, BuildShortcuts(tt.shortcuts, manifest))
		})
	}
}

func TestBuildShortcuts_NoManifestURL(t *testing.T) {
	t.Parallel()
	got := BuildShortcuts([]model.ManifestShortcut{
		{Name: "Open", URL: "/open", Icons: []model.ManifestIcon{icon("open.png", "")}},
	}, "")
	require.Empty(t, got)
}

func TestFindSuitableIcon(t *testing.T) {
	t.Parallel()

	icons := []model.ManifestIcon{
		{Src: "small.png", Sizes: "48x48"},
		{Src: "big.png", Sizes: "96x96 192x192", Purpose: "any maskable"},
		{Src: "mask.png", Sizes: "512x512", Purpose: "maskable"},
		{Src: "", Sizes: "1024x1024"},
	}
	got, ok := FindSuitableIcon(icons, "any")
	require.True(t, ok)
	require.Equal(t, "big.png", got.Src)

	got, ok = FindSuitableIcon(icons, "maskable")
	require.True(t, ok)
	require.Equal(t, "mask.png", got.Src)

	_, ok = FindSuitableIcon(nil, "any")
	require.False(t, ok)
}

func TestBuildTwaManifest(t *testing.T) {
	t.Parallel()

	opts := webboardOptions()
	opts.Features = &model.Features{PlayBilling: &model.FeatureToggle{Enabled: true}}

	m := BuildTwaManifest(opts, "/tmp/project/signingKey.keystore", "my-key-alias")
	require.Equal(t, "webboard.app", m.Host)
	require.Equal(t, "app.webboard", m.PackageID)
	require.Equal(t, "PWABuilder", m.GeneratorApp)
	require.Equal(t, SigningKey{Path: "/tmp/project/signingKey.keystore", Alias: "my-key-alias"}, m.SigningKey)
	require.NotNil(t, m.AlphaDependencies)
	require.True(t, m.AlphaDependencies.Enabled)
	require.NotNil(t, m.Shortcuts)

	opts.Features = nil
	require.Nil(t, BuildTwaManifest(opts, "", "").AlphaDependencies)
}

func TestWriteTwaManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := WriteTwaManifest(dir, BuildTwaManifest(webboardOptions(), "", ""))
	require.NoError(t, err)
	require.FileExists(t, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Equal(t, "webboard.app", raw["host"])
	require.Equal(t, "1.0.0.0", raw["appVersion"])
	require.Equal(t, []interface{}{}, raw["shortcuts"])
	require.NotContains(t, raw, "alphaDependencies")
}
