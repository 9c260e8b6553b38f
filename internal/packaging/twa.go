package packaging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

const (
	// TwaManifestFileName is the manifest the project generator reads.
	TwaManifestFileName = "twa-manifest.json"
	// SigningKeyFileName is where signing keys live inside the project.
	SigningKeyFileName = "signingKey.keystore"

	maxShortcuts      = 4
	shortNameMaxChars = 12
	generatorApp      = "PWABuilder"
)

// SigningKey points the generated project at its keystore.
type SigningKey struct {
	Path  string `json:"path"`
	Alias string `json:"alias"`
}

// TwaShortcut is a launcher shortcut in the generated project.
type TwaShortcut struct {
	Name          string `json:"name"`
	ShortName     string `json:"shortName"`
	URL           string `json:"url"`
	ChosenIconURL string `json:"chosenIconUrl"`
}

type AlphaDependencies struct {
	Enabled bool `json:"enabled"`
}

// TwaManifest is the project description consumed by the project generator.
type TwaManifest struct {
	PackageID                   string             `json:"packageId"`
	Host                        string             `json:"host"`
	Name                        string             `json:"name"`
	LauncherName                string             `json:"launcherName"`
	Display                     string             `json:"display"`
	Orientation                 string             `json:"orientation,omitempty"`
	ThemeColor                  string             `json:"themeColor"`
	ThemeColorDark              string             `json:"themeColorDark,omitempty"`
	NavigationColor             string             `json:"navigationColor"`
	NavigationColorDark         string             `json:"navigationColorDark,omitempty"`
	NavigationDividerColor      string             `json:"navigationDividerColor,omitempty"`
	NavigationDividerColorDark  string             `json:"navigationDividerColorDark,omitempty"`
	BackgroundColor             string             `json:"backgroundColor"`
	EnableNotifications         bool               `json:"enableNotifications"`
	StartURL                    string             `json:"startUrl"`
	IconURL                     string             `json:"iconUrl"`
	MaskableIconURL             string             `json:"maskableIconUrl,omitempty"`
	MonochromeIconURL           string             `json:"monochromeIconUrl,omitempty"`
	SplashScreenFadeOutDuration int                `json:"splashScreenFadeOutDuration"`
	SigningKey                  SigningKey         `json:"signingKey"`
	AppVersion                  string             `json:"appVersion"`
	AppVersionCode              int                `json:"appVersionCode"`
	Shortcuts                   []TwaShortcut      `json:"shortcuts"`
	GeneratorApp                string             `json:"generatorApp"`
	WebManifestURL              string             `json:"webManifestUrl"`
	FallbackType                string             `json:"fallbackType"`
	Features                    *model.Features    `json:"features,omitempty"`
	AlphaDependencies           *AlphaDependencies `json:"alphaDependencies,omitempty"`
	EnableSiteSettingsShortcut  *bool              `json:"enableSiteSettingsShortcut,omitempty"`
	IsChromeOSOnly              bool               `json:"isChromeOSOnly"`
	IsMetaQuest                 bool               `json:"isMetaQuest"`
	FullScopeURL                string             `json:"fullScopeUrl,omitempty"`
	MinSdkVersion               int                `json:"minSdkVersion,omitempty"`
	ShareTarget                 *model.ShareTarget `json:"shareTarget,omitempty"`
	AdditionalTrustedOrigins    []string           `json:"additionalTrustedOrigins,omitempty"`
	ServiceAccountJSONFile      string             `json:"serviceAccountJsonFile,omitempty"`
}

// NormalizeHost strips the https scheme and one trailing slash. The path is
// kept because PWAs can live below the root of a host.
func NormalizeHost(host string) string {
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimSuffix(host, "/")
}

// BuildTwaManifest translates opts into the generator's manifest. keyPath and
// alias are empty for unsigned builds.
func BuildTwaManifest(opts model.PackagingOptions, keyPath, alias string) TwaManifest {
	var alpha *AlphaDependencies
	if opts.Features != nil && opts.Features.PlayBilling != nil && opts.Features.PlayBilling.Enabled {
		alpha = &AlphaDependencies{Enabled: true}
	}

	return TwaManifest{
		PackageID:                   opts.PackageID,
		Host:                        NormalizeHost(opts.Host),
		Name:                        opts.Name,
		LauncherName:                opts.LauncherName,
		Display:                     opts.Display,
		Orientation:                 opts.Orientation,
		ThemeColor:                  opts.ThemeColor,
		ThemeColorDark:              opts.ThemeColorDark,
		NavigationColor:             opts.NavigationColor,
		NavigationColorDark:         opts.NavigationColorDark,
		NavigationDividerColor:      opts.NavigationDividerColor,
		NavigationDividerColorDark:  opts.NavigationDividerColorDark,
		BackgroundColor:             opts.BackgroundColor,
		EnableNotifications:         opts.EnableNotifications,
		StartURL:                    opts.StartURL,
		IconURL:                     opts.IconURL,
		MaskableIconURL:             opts.MaskableIconURL,
		MonochromeIconURL:           opts.MonochromeIconURL,
		SplashScreenFadeOutDuration: opts.SplashScreenFadeOutDuration,
		SigningKey:                  SigningKey{Path: keyPath, Alias: alias},
		AppVersion:                  opts.AppVersion,
		AppVersionCode:              opts.AppVersionCode,
		Shortcuts:                   BuildShortcuts(opts.Shortcuts, opts.WebManifestURL),
		GeneratorApp:                generatorApp,
		WebManifestURL:              opts.WebManifestURL,
		FallbackType:                opts.FallbackType,
		Features:                    opts.Features,
		AlphaDependencies:           alpha,
		EnableSiteSettingsShortcut:  opts.EnableSiteSettingsShortcut,
		IsChromeOSOnly:              opts.IsChromeOSOnly,
		IsMetaQuest:                 opts.IsMetaQuest,
		FullScopeURL:                opts.FullScopeURL,
		MinSdkVersion:               opts.MinSdkVersion,
		ShareTarget:                 opts.ShareTarget,
		AdditionalTrustedOrigins:    opts.AdditionalTrustedOrigins,
		ServiceAccountJSONFile:      opts.ServiceAccountJSONFile,
	}
}

// WriteTwaManifest writes m as twa-manifest.json inside dir and returns its
// path.
func WriteTwaManifest(dir string, m TwaManifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal twa manifest: %w", err)
	}
	path := filepath.Join(dir, TwaManifestFileName)
	if err := util.WriteFileInDir(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// BuildShortcuts keeps the valid shortcuts, resolves their URLs against the
// web manifest URL and returns at most four.
func BuildShortcuts(shortcuts []model.ManifestShortcut, manifestURL string) []TwaShortcut {
	out := []TwaShortcut{}
	if len(shortcuts) == 0 {
		return out
	}
	base, err := url.Parse(manifestURL)
	if manifestURL == "" || err != nil {
		logger.Log.Warn().Str("webManifestUrl", manifestURL).Msg("skipping app shortcuts due to unusable manifest URL")
		return out
	}

	for _, s := range shortcuts {
		if len(out) == maxShortcuts {
			break
		}
		sc, ok := buildShortcut(s, base)
		if !ok {
			continue
		}
		out = append(out, sc)
	}
	return out
}

func buildShortcut(s model.ManifestShortcut, base *url.URL) (TwaShortcut, bool) {
	if s.URL == "" {
		logger.Log.Debug().Str("shortcut", s.Name).Msg("shortcut dropped: no url")
		return TwaShortcut{}, false
	}
	if s.Name == "" && s.ShortName == "" {
		logger.Log.Debug().Str("url", s.URL).Msg("shortcut dropped: neither name nor short_name")
		return TwaShortcut{}, false
	}
	icon, ok := FindSuitableIcon(s.Icons, "any")
	if !ok {
		logger.Log.Debug().Str("url", s.URL).Msg("shortcut dropped: no suitable icon")
		return TwaShortcut{}, false
	}

	target, err := resolve(base, s.URL)
	if err != nil {
		logger.Log.Debug().Err(err).Str("url", s.URL).Msg("shortcut dropped: bad url")
		return TwaShortcut{}, false
	}
	iconURL, err := resolve(base, icon.Src)
	if err != nil {
		logger.Log.Debug().Err(err).Str("icon", icon.Src).Msg("shortcut dropped: bad icon url")
		return TwaShortcut{}, false
	}

	name := s.Name
	if name == "" {
		name = s.ShortName
	}
	shortName := s.ShortName
	if shortName == "" {
		shortName = truncateRunes(s.Name, shortNameMaxChars)
	}
	return TwaShortcut{Name: name, ShortName: shortName, URL: target, ChosenIconURL: iconURL}, true
}

// FindSuitableIcon returns the largest icon whose purpose list contains
// purpose. An icon without a purpose counts as "any".
func FindSuitableIcon(icons []model.ManifestIcon, purpose string) (model.ManifestIcon, bool) {
	var (
		best     model.ManifestIcon
		bestSize = -1
	)
	for _, icon := range icons {
		if icon.Src == "" || !hasPurpose(icon.Purpose, purpose) {
			continue
		}
		size := largestSize(icon.Sizes)
		if size > bestSize {
			best, bestSize = icon, size
		}
	}
	return best, bestSize >= 0
}

func hasPurpose(purposes, want string) bool {
	if strings.TrimSpace(purposes) == "" {
		purposes = "any"
	}
	for _, p := range strings.Fields(purposes) {
		if p == want {
			return true
		}
	}
	return false
}

// largestSize parses a sizes attribute such as "48x48 96x96" and returns the
// largest width.
func largestSize(sizes string) int {
	largest := 0
	for _, s := range strings.Fields(sizes) {
		w, _, _ := strings.Cut(strings.ToLower(s), "x")
		if n, err := strconv.Atoi(w); err == nil && n > largest {
			largest = n
		}
	}
	return largest
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
