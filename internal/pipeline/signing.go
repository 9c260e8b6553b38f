package pipeline

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

// PrepareSigning materializes the signing key described by opts inside dir.
// It returns nil when the package is not signed. For SigningModeMine the
// uploaded keystore is decoded to disk; for SigningModeNew only the path is
// reserved, the key is created during the run.
func PrepareSigning(opts model.PackagingOptions, dir string) (*LocalSigningMaterial, error) {
	if opts.SigningMode == model.SigningModeNone || opts.SigningMode == "" || opts.Signing == nil {
		return nil, nil
	}

	s := opts.Signing
	m := &LocalSigningMaterial{
		Alias:              s.Alias,
		FullName:           s.FullName,
		Organization:       s.Organization,
		OrganizationalUnit: s.OrganizationalUnit,
		CountryCode:        s.CountryCode,
		KeyPassword:        s.KeyPassword,
		StorePassword:      s.StorePassword,
		KeyFilePath:        filepath.Join(dir, packaging.SigningKeyFileName),
	}

	if opts.SigningMode == model.SigningModeMine {
		data, err := DecodeDataURL(s.File)
		if err != nil {
			return nil, packaging.Wrap(packaging.KindValidation, "decode signing key", err)
		}
		if err := os.WriteFile(m.KeyFilePath, data, 0600); err != nil {
			return nil, packaging.Wrap(packaging.KindToolchain, "write signing key", err)
		}
	}
	return m, nil
}

// DecodeDataURL returns the payload of a base64 data URL such as
// "data:application/octet-stream;base64,AAAA".
func DecodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data URL payload is empty")
	}
	return data, nil
}
