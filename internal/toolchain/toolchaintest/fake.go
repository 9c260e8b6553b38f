// Package toolchaintest provides an in-process Toolchain that writes
// placeholder outputs where the real programs would.
package toolchaintest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain"
)

const DefaultFingerprint = "9A:4F:2C:71:0B:AA:62:9E:1D:07:53:44:F0:19:68:3C:DD:0E:71:AB:8C:29:5F:60:E2:13:44:07:9B:C1:DE:25"

// Fake records every call. Errors queued in GenerateErrs are returned by
// successive GenerateProject calls; the other error fields apply to every
// call of their step.
type Fake struct {
	mu sync.Mutex

	Calls       []string
	Engines     []packaging.FetchEngine
	Manifests   []packaging.TwaManifest
	CreatedKeys []toolchain.SigningKey
	SignedWith  []toolchain.SigningKey

	GenerateErrs   []error
	BuildErr       error
	CreateKeyErr   error
	SignErr        error
	FingerprintErr error
	BundleErr      error
	SHA256         string
}

func New() *Fake {
	return &Fake{SHA256: DefaultFingerprint}
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

// CallList returns a copy of the recorded calls.
func (f *Fake) CallList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) GenerateProject(ctx context.Context, dir, manifestPath string, engine packaging.FetchEngine) error {
	f.record("generate")

	var m packaging.TwaManifest
	if b, err := os.ReadFile(manifestPath); err == nil {
		_ = json.Unmarshal(b, &m)
	}

	f.mu.Lock()
	f.Engines = append(f.Engines, engine)
	f.Manifests = append(f.Manifests, m)
	var err error
	if len(f.GenerateErrs) > 0 {
		err = f.GenerateErrs[0]
		f.GenerateErrs = f.GenerateErrs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "build.gradle"), "// generated")
}

func (f *Fake) Build(ctx context.Context, dir string) (string, error) {
	f.record("build")
	if f.BuildErr != nil {
		return "", f.BuildErr
	}
	path := toolchain.UnsignedApkPath(dir)
	return path, writeFile(path, "unsigned apk")
}

func (f *Fake) CreateKey(ctx context.Context, key toolchain.SigningKey, id toolchain.KeyIdentity) error {
	f.record("createKey")
	if f.CreateKeyErr != nil {
		return f.CreateKeyErr
	}
	f.mu.Lock()
	f.CreatedKeys = append(f.CreatedKeys, key)
	f.mu.Unlock()
	return writeFile(key.Path, "keystore")
}

func (f *Fake) Sign(ctx context.Context, key toolchain.SigningKey, apkPath, outPath string) error {
	f.record("sign")
	if f.SignErr != nil {
		return f.SignErr
	}
	f.mu.Lock()
	f.SignedWith = append(f.SignedWith, key)
	f.mu.Unlock()
	return writeFile(outPath, "signed apk")
}

func (f *Fake) Fingerprint(ctx context.Context, key toolchain.SigningKey) (string, error) {
	f.record("fingerprint")
	if f.FingerprintErr != nil {
		return "", f.FingerprintErr
	}
	return f.SHA256, nil
}

func (f *Fake) BuildBundle(ctx context.Context, dir string) (string, error) {
	f.record("bundle")
	if f.BundleErr != nil {
		return "", f.BundleErr
	}
	path := toolchain.BundlePath(dir)
	return path, writeFile(path, "unsigned aab")
}

func (f *Fake) SignBundle(ctx context.Context, key toolchain.SigningKey, bundlePath, outPath string) error {
	f.record("signBundle")
	if f.SignErr != nil {
		return f.SignErr
	}
	return writeFile(outPath, "signed aab")
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
