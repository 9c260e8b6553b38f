package packaging

import "github.com/pwa-builder/PWABuilder-sub006/model"

func webboardOptions() model.PackagingOptions {
	return model.PackagingOptions{
		AppVersion:      "1.0.0.0",
		AppVersionCode:  1,
		BackgroundColor: "#3f51b5",
		Display:         "standalone",
		FallbackType:    "customtabs",
		Host:            "https://webboard.app/",
		IconURL:         "https://webboard.app/assets/icons/icon_512.png",
		LauncherName:    "Webboard",
		Name:            "Webboard",
		NavigationColor: "#3f51b5",
		PackageID:       "app.webboard",
		SigningMode:     model.SigningModeNone,
		StartURL:        "/",
		ThemeColor:      "#3f51b5",
		WebManifestURL:  "https://webboard.app/manifest.json",
		PwaURL:          "https://webboard.app",
	}
}

func newKeyOptions() model.PackagingOptions {
	opts := webboardOptions()
	opts.SigningMode = model.SigningModeNew
	opts.Signing = &model.SigningDetails{
		Alias:              "my-key-alias",
		FullName:           "Judah Gabriel Himango",
		Organization:       "Webboard",
		OrganizationalUnit: "Engineering",
		CountryCode:        "US",
	}
	return opts
}
