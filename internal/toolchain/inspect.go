package toolchain

import (
	"fmt"

	"github.com/shogo82148/androidbinary/apk"
)

// APKInspector reads the binary manifest of a built APK.
type APKInspector struct{}

func NewAPKInspector() *APKInspector {
	return &APKInspector{}
}

// PackageID returns the package name declared in the APK manifest.
func (APKInspector) PackageID(apkPath string) (string, error) {
	pkg, err := apk.OpenFile(apkPath)
	if err != nil {
		return "", fmt.Errorf("failed to open apk %s: %w", apkPath, err)
	}
	defer pkg.Close()

	manifest := pkg.Manifest()
	id, err := manifest.Package.String()
	if err != nil {
		return "", fmt.Errorf("failed to read package name: %w", err)
	}
	return id, nil
}
