package pipeline

import (
	"encoding/json"
	"fmt"
)

type assetLinkTarget struct {
	Namespace              string   `json:"namespace"`
	PackageName            string   `json:"package_name"`
	SHA256CertFingerprints []string `json:"sha256_cert_fingerprints"`
}

type assetLinkStatement struct {
	Relation []string        `json:"relation"`
	Target   assetLinkTarget `json:"target"`
}

// AssetLinks renders the Digital Asset Links document binding packageID to
// the site.
func AssetLinks(packageID string, fingerprints ...string) ([]byte, error) {
	doc := []assetLinkStatement{{
		Relation: []string{"delegate_permission/common.handle_all_urls"},
		Target: assetLinkTarget{
			Namespace:              "android_app",
			PackageName:            packageID,
			SHA256CertFingerprints: fingerprints,
		},
	}}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal asset links: %w", err)
	}
	return b, nil
}
