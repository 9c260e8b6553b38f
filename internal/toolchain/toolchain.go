package toolchain

import (
	"context"
	"path/filepath"

	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
)

// Paths of the build outputs, relative to the project directory.
const (
	UnsignedApkRelPath  = "app/build/outputs/apk/release/app-release-unsigned.apk"
	AssetLinksRelPath   = "app/build/outputs/apk/release/assetlinks.json"
	BundleRelPath       = "app/build/outputs/bundle/release/app-release.aab"
	SignedBundleRelPath = "app/build/outputs/bundle/release/app-release-signed.aab"
	SignedApkFileName   = "app-release-signed.apk"
)

// SigningKey identifies a keystore entry and the secrets that unlock it.
type SigningKey struct {
	Path          string
	Alias         string
	StorePassword string
	KeyPassword   string
}

// KeyIdentity is the distinguished name written into a new key.
type KeyIdentity struct {
	FullName           string
	Organization       string
	OrganizationalUnit string
	CountryCode        string
}

// Toolchain drives the external Android build programs. Every step runs to
// completion before returning; outputs are written inside the project
// directory.
type Toolchain interface {
	// GenerateProject creates the Android project in dir from the manifest at
	// manifestPath, fetching remote resources with engine.
	GenerateProject(ctx context.Context, dir, manifestPath string, engine packaging.FetchEngine) error
	// Build assembles the unsigned release APK and returns its path.
	Build(ctx context.Context, dir string) (string, error)
	CreateKey(ctx context.Context, key SigningKey, id KeyIdentity) error
	Sign(ctx context.Context, key SigningKey, apkPath, outPath string) error
	// Fingerprint returns the SHA-256 certificate fingerprint of key.
	Fingerprint(ctx context.Context, key SigningKey) (string, error)
	// BuildBundle assembles the release app bundle and returns its path.
	BuildBundle(ctx context.Context, dir string) (string, error)
	SignBundle(ctx context.Context, key SigningKey, bundlePath, outPath string) error
}

// Inspector reads metadata out of a built APK.
type Inspector interface {
	PackageID(apkPath string) (string, error)
}

func UnsignedApkPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(UnsignedApkRelPath))
}

func SignedApkPath(dir string) string {
	return filepath.Join(dir, SignedApkFileName)
}

func AssetLinksPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(AssetLinksRelPath))
}

func BundlePath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(BundleRelPath))
}

func SignedBundlePath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(SignedBundleRelPath))
}
