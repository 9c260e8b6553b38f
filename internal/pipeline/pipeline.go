package pipeline

import (
	"context"
	"fmt"

	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/toolchain"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline sequences the toolchain steps that turn packaging options into a
// signed APK and app bundle. Steps of one run are strictly sequential; a
// Pipeline may serve many runs concurrently.
type Pipeline struct {
	tc        toolchain.Toolchain
	inspector toolchain.Inspector
}

type Option func(*Pipeline)

// WithInspector enables best-effort inspection of the built APK.
func WithInspector(i toolchain.Inspector) Option {
	return func(p *Pipeline) { p.inspector = i }
}

func New(tc toolchain.Toolchain, opts ...Option) *Pipeline {
	p := &Pipeline{tc: tc}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RunWithFallback runs the pipeline and, if the first attempt fails to fetch
// a remote resource, runs it once more with proxied resource URLs and the
// HTTP/2 fetch engine. Any other failure, or a failed retry, is returned.
func (p *Pipeline) RunWithFallback(ctx context.Context, req Request) (*GeneratedPackage, error) {
	log := logger.FromContext(ctx)

	pkg, err := p.Run(ctx, req, packaging.FetchEngineHTTP1)
	if err == nil {
		return pkg, nil
	}
	if !packaging.IsTransient(err) {
		return nil, err
	}

	log.Warn().Err(err).Msg("resource fetch failed, retrying with safe URL proxy")
	req.report("Encountered 403 error when generating app package. This indicates PWABuilder was unable to download the images in your web manifest. Retrying with safe URL proxy and HTTP2.")

	retry := req
	retry.Options = packaging.RewriteForFallback(req.Options)
	pkg, err = p.Run(ctx, retry, packaging.FetchEngineHTTP2)
	if err != nil {
		// both attempts used; the worker must not requeue
		return nil, &packaging.Error{
			Kind:  packaging.KindToolchain,
			Op:    "retry with safe URL proxy",
			Cause: err,
		}
	}
	return pkg, nil
}

// Run executes one attempt: project generation, unsigned build, optional
// signing, best-effort asset links, then the app bundle.
func (p *Pipeline) Run(ctx context.Context, req Request, engine packaging.FetchEngine) (*GeneratedPackage, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Pipeline/Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("package_id", req.Options.PackageID),
		attribute.String("signing_mode", string(req.Options.SigningMode)),
		attribute.String("fetch_engine", string(engine)),
	)

	pkg, err := p.run(ctx, req, engine)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}
	return pkg, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, engine packaging.FetchEngine) (*GeneratedPackage, error) {
	log := logger.FromContext(ctx)
	opts := req.Options
	signing := req.Signing
	if opts.SigningMode == model.SigningModeNone {
		signing = nil
	}

	req.report("Creating Trusted Web Activity (TWA) project...")
	if err := p.generateProject(ctx, req, signing, engine); err != nil {
		return nil, err
	}

	req.report("Building APK...")
	apkPath, err := p.tc.Build(ctx, req.Dir)
	if err != nil {
		return nil, err
	}
	p.inspect(ctx, apkPath, opts.PackageID)

	pkg := &GeneratedPackage{
		ProjectDir: req.Dir,
		ApkPath:    apkPath,
	}

	if signing != nil {
		if opts.SigningMode == model.SigningModeNew {
			// key and store must share one password
			pw, err := packaging.GeneratePassword(packaging.PasswordLength)
			if err != nil {
				return nil, packaging.Wrap(packaging.KindToolchain, "generate password", err)
			}
			signing.KeyPassword = pw
			signing.StorePassword = pw

			req.report("Creating signing key...")
			if err := p.tc.CreateKey(ctx, signing.key(), signing.identity()); err != nil {
				return nil, err
			}
		}

		req.report("Signing APK...")
		signedApk := toolchain.SignedApkPath(req.Dir)
		if err := p.tc.Sign(ctx, signing.key(), apkPath, signedApk); err != nil {
			return nil, err
		}
		pkg.ApkPath = signedApk
		pkg.Signing = signing
		pkg.Signed = true

		pkg.AssetLinksPath = p.tryAssetLinks(ctx, req, signing)
	}

	req.report("Building App Bundle...")
	bundle, err := p.tc.BuildBundle(ctx, req.Dir)
	if err != nil {
		return nil, err
	}
	pkg.BundlePath = bundle
	if signing != nil {
		signedBundle := toolchain.SignedBundlePath(req.Dir)
		if err := p.tc.SignBundle(ctx, signing.key(), bundle, signedBundle); err != nil {
			return nil, err
		}
		pkg.BundlePath = signedBundle
	}

	log.Info().Bool("signed", pkg.Signed).Str("apk", pkg.ApkPath).Str("bundle", pkg.BundlePath).Msg("app package generated")
	return pkg, nil
}

func (p *Pipeline) generateProject(ctx context.Context, req Request, signing *LocalSigningMaterial, engine packaging.FetchEngine) error {
	var keyPath, alias string
	if signing != nil {
		keyPath, alias = signing.KeyFilePath, signing.Alias
	}
	manifest := packaging.BuildTwaManifest(req.Options, keyPath, alias)
	manifestPath, err := packaging.WriteTwaManifest(req.Dir, manifest)
	if err != nil {
		return packaging.Wrap(packaging.KindToolchain, "write twa manifest", err)
	}
	return p.tc.GenerateProject(ctx, req.Dir, manifestPath, engine)
}

// tryAssetLinks returns the path of the generated assetlinks.json, or an
// empty string when the fingerprint could not be read.
func (p *Pipeline) tryAssetLinks(ctx context.Context, req Request, signing *LocalSigningMaterial) string {
	log := logger.FromContext(ctx)
	span := trace.SpanFromContext(ctx)

	req.report("Generating asset links...")
	path, err := p.assetLinks(ctx, req.Options.PackageID, req.Dir, signing)
	if err != nil {
		span.AddEvent("asset links skipped")
		log.Warn().Err(err).Msg("asset links couldn't be generated, proceeding without them")
		req.report(fmt.Sprintf("Asset links couldn't be generated. Proceeding without asset links. Error: %v", err))
		return ""
	}
	req.report("Digital Asset Links file generated at " + path)
	return path
}

func (p *Pipeline) assetLinks(ctx context.Context, packageID, dir string, signing *LocalSigningMaterial) (string, error) {
	fp, err := p.tc.Fingerprint(ctx, signing.key())
	if err != nil {
		return "", packaging.Wrap(packaging.KindBestEffort, "asset links", err)
	}
	doc, err := AssetLinks(packageID, fp)
	if err != nil {
		return "", packaging.Wrap(packaging.KindBestEffort, "asset links", err)
	}
	path := toolchain.AssetLinksPath(dir)
	if err := util.WriteFileInDir(path, doc, 0644); err != nil {
		return "", packaging.Wrap(packaging.KindBestEffort, "asset links", err)
	}
	return path, nil
}

// inspect logs when the built APK declares a different package id than was
// requested. It never fails the run.
func (p *Pipeline) inspect(ctx context.Context, apkPath, want string) {
	if p.inspector == nil {
		return
	}
	log := logger.FromContext(ctx)
	got, err := p.inspector.PackageID(apkPath)
	if err != nil {
		log.Debug().Err(err).Str("apk", apkPath).Msg("apk inspection skipped")
		return
	}
	if got != want {
		log.Warn().Str("want", want).Str("got", got).Msg("built apk declares unexpected package id")
	}
}
