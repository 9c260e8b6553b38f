package pipeline

import (
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

// LocalSigningMaterial is the signing key of one job once it has a path on
// disk. It holds plaintext secrets and lives only for the duration of a run.
type LocalSigningMaterial struct {
	Alias              string
	FullName           string
	Organization       string
	OrganizationalUnit string
	CountryCode        string
	KeyPassword        string
	StorePassword      string
	KeyFilePath        string
}

func (m *LocalSigningMaterial) key() toolchain.SigningKey {
	return toolchain.SigningKey{
		Path:          m.KeyFilePath,
		Alias:         m.Alias,
		StorePassword: m.StorePassword,
		KeyPassword:   m.KeyPassword,
	}
}

func (m *LocalSigningMaterial) identity() toolchain.KeyIdentity {
	return toolchain.KeyIdentity{
		FullName:           m.FullName,
		Organization:       m.Organization,
		OrganizationalUnit: m.OrganizationalUnit,
		CountryCode:        m.CountryCode,
	}
}

// GeneratedPackage is the output of a successful run. It is owned by the run
// that produced it until handed to the artifact assembler.
type GeneratedPackage struct {
	ProjectDir     string
	ApkPath        string
	BundlePath     string
	Signing        *LocalSigningMaterial
	AssetLinksPath string
	Signed         bool
}

// Request describes one pipeline run.
type Request struct {
	Options model.PackagingOptions
	// Dir is the scratch directory owned by this run.
	Dir     string
	Signing *LocalSigningMaterial
	// Progress receives human readable step messages. May be nil.
	Progress func(msg string)
}

func (r Request) report(msg string) {
	if r.Progress != nil {
		r.Progress(msg)
	}
}
