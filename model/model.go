package model

import (
	"time"
)

type JobStatus string

const (
	JobQueued     JobStatus = "Queued"
	JobProcessing JobStatus = "Processing"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
)

type SigningMode string

const (
	SigningModeNew  SigningMode = "new"
	SigningModeMine SigningMode = "mine"
	SigningModeNone SigningMode = "none"
)

// Job represents one Google Play packaging request and its processing state.
// It is stored as flat JSON keyed by ID.
type Job struct {
	ID                   string           `json:"id"`
	PwaURL               string           `json:"pwaUrl"`
	AnalysisID           *string          `json:"analysisId"`
	PackageOptions       PackagingOptions `json:"packageOptions"`
	Status               JobStatus        `json:"status"`
	RetryCount           int              `json:"retryCount"`
	Logs                 []string         `json:"logs"`
	Errors               []string         `json:"errors"`
	UploadedBlobFileName string           `json:"uploadedBlobFileName,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// IsTerminal reports whether the job reached Completed or Failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// Redacted returns a copy of the job without signing secrets, suitable for
// returning to status pollers.
func (j Job) Redacted() Job {
	if j.PackageOptions.Signing != nil {
		s := *j.PackageOptions.Signing
		s.KeyPassword = ""
		s.StorePassword = ""
		s.File = ""
		j.PackageOptions.Signing = &s
	}
	return j
}

// PackagingOptions is the caller supplied description of the Android app to
// generate.
type PackagingOptions struct {
	AdditionalTrustedOrigins    []string           `json:"additionalTrustedOrigins,omitempty"`
	AppVersion                  string             `json:"appVersion" validate:"required"`
	AppVersionCode              int                `json:"appVersionCode" validate:"required"`
	BackgroundColor             string             `json:"backgroundColor" validate:"required"`
	Display                     string             `json:"display" validate:"required,oneof=standalone fullscreen fullscreen-sticky"`
	EnableNotifications         bool               `json:"enableNotifications"`
	EnableSiteSettingsShortcut  *bool              `json:"enableSiteSettingsShortcut,omitempty"`
	FallbackType                string             `json:"fallbackType" validate:"required,oneof=customtabs webview"`
	Features                    *Features          `json:"features,omitempty"`
	Host                        string             `json:"host" validate:"required"`
	IconURL                     string             `json:"iconUrl" validate:"required"`
	IncludeSourceCode           bool               `json:"includeSourceCode"`
	IsChromeOSOnly              bool               `json:"isChromeOSOnly,omitempty"`
	IsMetaQuest                 bool               `json:"isMetaQuest,omitempty"`
	LauncherName                string             `json:"launcherName" validate:"required"`
	MaskableIconURL             string             `json:"maskableIconUrl,omitempty"`
	MonochromeIconURL           string             `json:"monochromeIconUrl,omitempty"`
	Name                        string             `json:"name"`
	NavigationColor             string             `json:"navigationColor" validate:"required"`
	NavigationColorDark         string             `json:"navigationColorDark,omitempty"`
	NavigationDividerColor      string             `json:"navigationDividerColor,omitempty"`
	NavigationDividerColorDark  string             `json:"navigationDividerColorDark,omitempty"`
	Orientation                 string             `json:"orientation,omitempty"`
	PackageID                   string             `json:"packageId" validate:"required"`
	ServiceAccountJSONFile      string             `json:"serviceAccountJsonFile,omitempty"`
	ShareTarget                 *ShareTarget       `json:"shareTarget,omitempty"`
	Shortcuts                   []ManifestShortcut `json:"shortcuts,omitempty"`
	Signing                     *SigningDetails    `json:"signing,omitempty"`
	SigningMode                 SigningMode        `json:"signingMode" validate:"required,oneof=new mine none"`
	SplashScreenFadeOutDuration int                `json:"splashScreenFadeOutDuration"`
	StartURL                    string             `json:"startUrl" validate:"required"`
	ThemeColor                  string             `json:"themeColor" validate:"required"`
	ThemeColorDark              string             `json:"themeColorDark,omitempty"`
	WebManifestURL              string             `json:"webManifestUrl" validate:"required"`
	FullScopeURL                string             `json:"fullScopeUrl,omitempty" validate:"required_if=IsMetaQuest true"`
	MinSdkVersion               int                `json:"minSdkVersion,omitempty"`
	PwaURL                      string             `json:"pwaUrl"`
	AnalysisID                  string             `json:"analysisId,omitempty"`
	AnalyticsInfo               *AnalyticsInfo     `json:"analyticsInfo,omitempty"`
}

// SigningDetails describes the key used to sign the package. Passwords may be
// empty when a new key is generated.
type SigningDetails struct {
	Alias              string `json:"alias"`
	FullName           string `json:"fullName,omitempty"`
	Organization       string `json:"organization,omitempty"`
	OrganizationalUnit string `json:"organizationalUnit,omitempty"`
	CountryCode        string `json:"countryCode,omitempty"`
	KeyPassword        string `json:"keyPassword,omitempty"`
	StorePassword      string `json:"storePassword,omitempty"`
	// File is a base64 data URL holding the keystore. Only used with SigningModeMine.
	File string `json:"file,omitempty"`
}

type Features struct {
	AppsFlyer          *AppsFlyerConfig    `json:"appsFlyer,omitempty"`
	LocationDelegation *FeatureToggle      `json:"locationDelegation,omitempty"`
	PlayBilling        *FeatureToggle      `json:"playBilling,omitempty"`
	FirstRunFlag       *FirstRunFlagConfig `json:"firstRunFlag,omitempty"`
}

type FeatureToggle struct {
	Enabled bool `json:"enabled"`
}

type AppsFlyerConfig struct {
	Enabled     bool   `json:"enabled"`
	AppsFlyerID string `json:"appsFlyerId"`
}

type FirstRunFlagConfig struct {
	Enabled            bool   `json:"enabled"`
	QueryParameterName string `json:"queryParameterName"`
}

type ShareTarget struct {
	Action  string             `json:"action,omitempty"`
	Method  string             `json:"method,omitempty"`
	EncType string             `json:"enctype,omitempty"`
	Params  *ShareTargetParams `json:"params,omitempty"`
}

type ShareTargetParams struct {
	Title string            `json:"title,omitempty"`
	Text  string            `json:"text,omitempty"`
	URL   string            `json:"url,omitempty"`
	Files []ShareTargetFile `json:"files,omitempty"`
}

type ShareTargetFile struct {
	Name   string   `json:"name"`
	Accept []string `json:"accept"`
}

// ManifestShortcut mirrors a web manifest shortcut entry.
type ManifestShortcut struct {
	Name      string         `json:"name,omitempty"`
	ShortName string         `json:"short_name,omitempty"`
	URL       string         `json:"url,omitempty"`
	Icons     []ManifestIcon `json:"icons,omitempty"`
}

type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes,omitempty"`
	Type    string `json:"type,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// AnalyticsInfo carries the non secret fields reported with package events.
type AnalyticsInfo struct {
	URL               string `json:"url"`
	PackageID         string `json:"packageId"`
	Name              string `json:"name"`
	PlatformID        string `json:"platformId,omitempty"`
	PlatformIDVersion string `json:"platformIdVersion,omitempty"`
	CorrelationID     string `json:"correlationId,omitempty"`
	Referrer          string `json:"referrer,omitempty"`
}

// JobOutcome is the audit row written when a job reaches a terminal state.
type JobOutcome struct {
	JobID       string    `db:"job_id" json:"jobId"`
	PackageID   string    `db:"package_id" json:"packageId"`
	Host        string    `db:"host" json:"host"`
	SigningMode string    `db:"signing_mode" json:"signingMode"`
	Status      string    `db:"status" json:"status"`
	RetryCount  int       `db:"retry_count" json:"retryCount"`
	BlobName    string    `db:"blob_name" json:"blobName,omitempty"`
	Error       string    `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	FinishedAt  time.Time `db:"finished_at" json:"finishedAt"`
}
