package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/pipeline"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Archive entry names.
const (
	ReadmeName      = "Readme.html"
	KeystoreName    = "signing.keystore"
	KeyInfoName     = "signing-key-info.txt"
	AssetLinksName  = "assetlinks.json"
	SourceDirPrefix = "source/"
)

type readmeData struct {
	Name       string
	PackageID  string
	Host       string
	ApkName    string
	BundleName string
}

// Assembler packs a generated package into the zip handed to the requester.
type Assembler struct {
	readmes *template.Template
}

func New() (*Assembler, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse readme templates: %w", err)
	}
	return &Assembler{readmes: t}, nil
}

// ApkName is the archive name of the APK, for example "Webboard-unsigned.apk".
func ApkName(opts model.PackagingOptions, signed bool) string {
	return baseName(opts, signed) + ".apk"
}

// BundleName is the archive name of the app bundle.
func BundleName(opts model.PackagingOptions, signed bool) string {
	return baseName(opts, signed) + ".aab"
}

func baseName(opts model.PackagingOptions, signed bool) string {
	name := opts.Name
	if name == "" {
		name = opts.LauncherName
	}
	if name == "" {
		name = "app"
	}
	if !signed {
		name += "-unsigned"
	}
	return name
}

// SigningKeyInfo renders the document recording the key alias, passwords and
// signer identity. Lines are joined with CRLF.
func SigningKeyInfo(m *pipeline.LocalSigningMaterial) string {
	lines := []string{
		"Keep this file and signing.keystore in a safe place. You'll need these files if you want to upload future versions of your PWA to the Google Play Store.\r\n",
		"Key store file: signing.keystore",
		"Key store password: " + m.StorePassword,
		"Key alias: " + m.Alias,
		"Key password: " + m.KeyPassword,
		"Signer's full name: " + m.FullName,
		"Signer's organization: " + m.Organization,
		"Signer's organizational unit: " + m.OrganizationalUnit,
		"Signer's country code: " + m.CountryCode,
	}
	return strings.Join(lines, "\r\n")
}

// Assemble writes the zip for pkg to zipPath. On any failure the partial file
// is removed and an error returned.
func (a *Assembler) Assemble(ctx context.Context, pkg *pipeline.GeneratedPackage, opts model.PackagingOptions, zipPath string) (err error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Artifact/Assemble")
	defer span.End()
	log := logger.FromContext(ctx)

	f, err := os.Create(zipPath)
	if err != nil {
		err = packaging.Wrap(packaging.KindToolchain, "create zip", err)
		util.RecordSpanError(span, err)
		return err
	}
	zw := zip.NewWriter(f)
	defer func() {
		if cerr := zw.Close(); err == nil && cerr != nil {
			err = packaging.Wrap(packaging.KindToolchain, "finalize zip", cerr)
		}
		if cerr := f.Close(); err == nil && cerr != nil {
			err = packaging.Wrap(packaging.KindToolchain, "close zip", cerr)
		}
		if err != nil {
			util.RecordSpanError(span, err)
			if rerr := util.RemoveFileIfExists(zipPath); rerr != nil {
				log.Warn().Err(rerr).Str("zip", zipPath).Msg("failed to remove partial zip")
			}
		}
	}()

	if err = a.write(zw, pkg, opts); err != nil {
		return packaging.Wrap(packaging.KindToolchain, "assemble zip", err)
	}
	log.Info().Str("zip", zipPath).Bool("signed", pkg.Signed).Msg("zip assembled")
	return nil
}

func (a *Assembler) write(zw *zip.Writer, pkg *pipeline.GeneratedPackage, opts model.PackagingOptions) error {
	signed := pkg.Signed && pkg.Signing != nil && pkg.Signing.KeyFilePath != ""
	apkName := ApkName(opts, signed)
	bundleName := BundleName(opts, signed)

	if err := addFile(zw, pkg.ApkPath, apkName); err != nil {
		return err
	}

	readme, err := a.readme(signed, readmeData{
		Name:       opts.Name,
		PackageID:  opts.PackageID,
		Host:       packaging.NormalizeHost(opts.Host),
		ApkName:    apkName,
		BundleName: bundleName,
	})
	if err != nil {
		return err
	}
	if err := addBytes(zw, readme, ReadmeName); err != nil {
		return err
	}

	if signed {
		if err := addFile(zw, pkg.Signing.KeyFilePath, KeystoreName); err != nil {
			return err
		}
		if err := addBytes(zw, []byte(SigningKeyInfo(pkg.Signing)), KeyInfoName); err != nil {
			return err
		}
		if pkg.AssetLinksPath != "" {
			if err := addFile(zw, pkg.AssetLinksPath, AssetLinksName); err != nil {
				return err
			}
		}
	}

	if pkg.BundlePath != "" {
		if err := addFile(zw, pkg.BundlePath, bundleName); err != nil {
			return err
		}
	}

	if opts.IncludeSourceCode {
		if err := addDir(zw, pkg.ProjectDir, SourceDirPrefix); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) readme(signed bool, data readmeData) ([]byte, error) {
	name := "next-steps-unsigned.html"
	if signed {
		name = "next-steps.html"
	}
	var buf bytes.Buffer
	if err := a.readmes.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func addBytes(zw *zip.Writer, data []byte, name string) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// addDir adds every regular file below root under prefix.
func addDir(zw *zip.Writer, root, prefix string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, prefix+filepath.ToSlash(rel))
	})
}
