package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain"
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain/toolchaintest"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"github.com/stretchr/testify/require"
)

func webboardOptions() model.PackagingOptions {
	return model.PackagingOptions{
		AppVersion:      "1.0.0.0",
		AppVersionCode:  1,
		BackgroundColor: "#3f51b5",
		Display:         "standalone",
		FallbackType:    "customtabs",
		Host:            "https://webboard.app",
		IconURL:         "https://webboard.app/icon_512.png",
		LauncherName:    "Webboard",
		Name:            "Webboard",
		NavigationColor: "#3f51b5",
		PackageID:       "app.webboard",
		SigningMode:     model.SigningModeNone,
		StartURL:        "/",
		ThemeColor:      "#3f51b5",
		WebManifestURL:  "https://webboard.app/manifest.json",
	}
}

func newModeOptions() model.PackagingOptions {
	opts := webboardOptions()
	opts.SigningMode = model.SigningModeNew
	opts.Signing = &model.SigningDetails{
		Alias:              "my-key-alias",
		FullName:           "Jane Doe",
		Organization:       "Webboard",
		OrganizationalUnit: "Engineering",
		CountryCode:        "US",
	}
	return opts
}

type progress struct{ msgs []string }

func (p *progress) add(m string) { p.msgs = append(p.msgs, m) }

func run(t *testing.T, tc toolchain.Toolchain, opts model.PackagingOptions) (*GeneratedPackage, *progress, error) {
	t.Helper()
	dir := t.TempDir()
	signing, err := PrepareSigning(opts, dir)
	require.NoError(t, err)
	pr := &progress{}
	pkg, err := New(tc).RunWithFallback(context.Background(), Request{
		Options:  opts,
		Dir:      dir,
		Signing:  signing,
		Progress: pr.add,
	})
	return pkg, pr, err
}

func TestRun_Unsigned(t *testing.T) {
	fake := toolchaintest.New()
	pkg, pr, err := run(t, fake, webboardOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"generate", "build", "bundle"}, fake.CallList())
	require.False(t, pkg.Signed)
	require.Nil(t, pkg.Signing)
	require.Empty(t, pkg.AssetLinksPath)
	require.Equal(t, toolchain.UnsignedApkPath(pkg.ProjectDir), pkg.ApkPath)
	require.Equal(t, toolchain.BundlePath(pkg.ProjectDir), pkg.BundlePath)
	require.FileExists(t, filepath.Join(pkg.ProjectDir, packaging.TwaManifestFileName))
	require.NotEmpty(t, pr.msgs)

	require.Len(t, fake.Manifests, 1)
	require.Equal(t, "webboard.app", fake.Manifests[0].Host)
	require.Empty(t, fake.Manifests[0].SigningKey.Path)
	require.Equal(t, []packaging.FetchEngine{packaging.FetchEngineHTTP1}, fake.Engines)
}

func TestRun_NewKey(t *testing.T) {
	fake := toolchaintest.New()
	pkg, _, err := run(t, fake, newModeOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"generate", "build", "createKey", "sign", "fingerprint", "bundle", "signBundle"}, fake.CallList())
	require.True(t, pkg.Signed)
	require.NotNil(t, pkg.Signing)

	// one generated password shared by key and store
	require.Len(t, pkg.Signing.KeyPassword, packaging.PasswordLength)
	require.Equal(t, pkg.Signing.KeyPassword, pkg.Signing.StorePassword)
	require.Len(t, fake.CreatedKeys, 1)
	require.Equal(t, fake.CreatedKeys[0].KeyPassword, fake.CreatedKeys[0].StorePassword)
	require.Equal(t, filepath.Join(pkg.ProjectDir, packaging.SigningKeyFileName), fake.CreatedKeys[0].Path)

	require.Equal(t, toolchain.SignedApkPath(pkg.ProjectDir), pkg.ApkPath)
	require.Equal(t, toolchain.SignedBundlePath(pkg.ProjectDir), pkg.BundlePath)
	require.Equal(t, toolchain.AssetLinksPath(pkg.ProjectDir), pkg.AssetLinksPath)

	b, err := os.ReadFile(pkg.AssetLinksPath)
	require.NoError(t, err)
	require.Contains(t, string(b), `"package_name": "app.webboard"`)
	require.Contains(t, string(b), toolchaintest.DefaultFingerprint)
	require.Contains(t, string(b), "delegate_permission/common.handle_all_urls")

	require.Equal(t, "my-key-alias", fake.Manifests[0].SigningKey.Alias)
}

func TestRun_MineKey(t *testing.T) {
	keystore := []byte{0xfe, 0xed, 0xfe, 0xed, 0x00, 0x02}
	opts := webboardOptions()
	opts.SigningMode = model.SigningModeMine
	opts.Signing = &model.SigningDetails{
		Alias:         "upload",
		KeyPassword:   "key pass",
		StorePassword: "store pass",
		File:          "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(keystore),
	}

	fake := toolchaintest.New()
	pkg, _, err := run(t, fake, opts)
	require.NoError(t, err)

	require.NotContains(t, fake.CallList(), "createKey")
	got, err := os.ReadFile(pkg.Signing.KeyFilePath)
	require.NoError(t, err)
	require.Equal(t, keystore, got)
	require.Equal(t, "key pass", fake.SignedWith[0].KeyPassword)
	require.Equal(t, "store pass", fake.SignedWith[0].StorePassword)
}

func TestRun_AssetLinksAreBestEffort(t *testing.T) {
	fake := toolchaintest.New()
	fake.FingerprintErr = errors.New("keytool error: java.io.IOException: keystore password was incorrect")

	pkg, pr, err := run(t, fake, newModeOptions())
	require.NoError(t, err)
	require.True(t, pkg.Signed)
	require.Empty(t, pkg.AssetLinksPath)
	require.NoFileExists(t, toolchain.AssetLinksPath(pkg.ProjectDir))
	require.Contains(t, strings.Join(pr.msgs, "\n"), "Proceeding without asset links")
	require.Contains(t, fake.CallList(), "signBundle")
}

func TestRunWithFallback(t *testing.T) {
	forbidden := packaging.MarkTransient(errors.New("Failed to download icon. Responded with status 403"))

	tests := []struct {
		name         string
		generateErrs []error
		wantErr      bool
		wantCalls    int
		wantKind     packaging.ErrorKind
	}{
		{"first attempt succeeds", nil, false, 1, packaging.KindUnknown},
		{"403 then success retries once", []error{forbidden}, false, 2, packaging.KindUnknown},
		{"403 twice fails after one retry", []error{forbidden, forbidden, forbidden}, true, 2, packaging.KindToolchain},
		{"toolchain error is not retried", []error{errors.New("Invalid manifest")}, true, 1, packaging.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := toolchaintest.New()
			fake.GenerateErrs = tt.generateErrs

			_, _, err := run(t, fake, webboardOptions())
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, tt.wantKind, packaging.KindOf(err))
				require.False(t, packaging.IsRetryable(err))
			} else {
				require.NoError(t, err)
			}
			require.Len(t, fake.Engines, tt.wantCalls)
			require.Equal(t, packaging.FetchEngineHTTP1, fake.Engines[0])

			if tt.wantCalls == 2 {
				require.Equal(t, packaging.FetchEngineHTTP2, fake.Engines[1])
				retried := fake.Manifests[1]
				require.True(t, strings.HasPrefix(retried.IconURL, "https://pwabuilder.com/api/images/getsafeimageforanalysis?imageUrl="))
				require.True(t, strings.HasPrefix(retried.WebManifestURL, "https://pwabuilder.com/api/images/getsafeimageforanalysis?imageUrl="))
				require.Equal(t, "https://webboard.app/icon_512.png", fake.Manifests[0].IconURL)
			}
		})
	}
}

func TestRun_BuildFailureStopsPipeline(t *testing.T) {
	fake := toolchaintest.New()
	fake.BuildErr = packaging.Wrap(packaging.KindToolchain, "gradle assembleRelease", errors.New("exit status 1"))

	_, _, err := run(t, fake, newModeOptions())
	require.Error(t, err)
	require.Equal(t, packaging.KindToolchain, packaging.KindOf(err))
	require.Equal(t, []string{"generate", "build"}, fake.CallList())
}

func TestPrepareSigning(t *testing.T) {
	dir := t.TempDir()

	m, err := PrepareSigning(webboardOptions(), dir)
	require.NoError(t, err)
	require.Nil(t, m)

	m, err = PrepareSigning(newModeOptions(), dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "signingKey.keystore"), m.KeyFilePath)
	require.NoFileExists(t, m.KeyFilePath)

	bad := webboardOptions()
	bad.SigningMode = model.SigningModeMine
	bad.Signing = &model.SigningDetails{Alias: "a", File: "data:application/octet-stream;base64,!!!"}
	_, err = PrepareSigning(bad, dir)
	require.Error(t, err)
	require.Equal(t, packaging.KindValidation, packaging.KindOf(err))
}

func TestDecodeDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", "data:application/octet-stream;base64,aGVsbG8=", "hello", false},
		{"no prefix", "aGVsbG8=", "", true},
		{"no comma", "data:application/octet-stream;base64", "", true},
		{"not base64", "data:text/plain,hello", "", true},
		{"empty payload", "data:application/octet-stream;base64,", "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeDataURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, string(got))
		})
	}
}
