package packaging

import (
	"errors"
	"net/url"
	"strings"

	"github.com/pwa-builder/PWABuilder-sub006/model"
)

// FetchEngine names the HTTP client the project generator uses to download
// the manifest and icons.
type FetchEngine string

const (
	FetchEngineHTTP1 FetchEngine = "node-fetch"
	FetchEngineHTTP2 FetchEngine = "fetch-h2"
)

const safeURLEndpoint = "https://pwabuilder.com/api/images/getsafeimageforanalysis"

var transientMarkers = []string{"403", "ECONNREFUSED", "ENOTFOUND"}

// IsTransient reports whether err looks like the generator failed to fetch a
// remote resource. Such failures are worth one retry through the safe URL
// proxy.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// MarkTransient reclassifies err as KindTransient when its text matches a
// fetch failure. Other errors are returned unchanged.
func MarkTransient(err error) error {
	if !IsTransient(err) {
		return err
	}
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindTransient {
		return err
	}
	return Wrap(KindTransient, "", err)
}

// RewriteForFallback returns a copy of opts whose absolute resource URLs go
// through the safe URL proxy. opts is not modified.
func RewriteForFallback(opts model.PackagingOptions) model.PackagingOptions {
	out := opts
	out.MaskableIconURL = safeURL(opts.MaskableIconURL)
	out.MonochromeIconURL = safeURL(opts.MonochromeIconURL)
	out.IconURL = safeURL(opts.IconURL)
	out.WebManifestURL = safeURL(opts.WebManifestURL)
	return out
}

func safeURL(raw string) string {
	if raw == "" {
		return ""
	}
	return safeURLEndpoint + "?imageUrl=" + encodeURIComponent(raw)
}

// encodeURIComponent escapes s for use as a single query value, encoding
// spaces as %20 rather than '+'.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
