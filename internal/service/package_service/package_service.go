package packageservice

import (
	"context"
	"fmt"
	"time"

	"github.com/pwa-builder/PWABuilder-sub006/internal/artifact"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/lifecycle"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/pipeline"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Packager turns packaging options into a zip archive on local disk. The
// archive and the scratch directory it was built in are deleted after the
// lifecycle manager's delay, so callers must upload or send it before then.
type Packager struct {
	pipeline  *pipeline.Pipeline
	assembler *artifact.Assembler
	lifecycle *lifecycle.Manager
	duration  metric.Float64Histogram
}

func New(p *pipeline.Pipeline, a *artifact.Assembler, lm *lifecycle.Manager) *Packager {
	h, err := job_tracer.GetMeter().Float64Histogram(
		"package.duration",
		metric.WithDescription("Time spent producing one app package"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("package duration histogram unavailable")
	}
	return &Packager{pipeline: p, assembler: a, lifecycle: lm, duration: h}
}

// CreateZip validates opts, runs the pipeline with its one-time fallback and
// assembles the result. progress may be nil.
func (p *Packager) CreateZip(ctx context.Context, opts model.PackagingOptions, progress func(string)) (string, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Packager/CreateZip")
	defer span.End()
	span.SetAttributes(attribute.String("package_id", opts.PackageID))

	start := time.Now()
	zipPath, err := p.createZip(ctx, opts, progress)
	if p.duration != nil {
		p.duration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("success", err == nil)))
	}
	if err != nil {
		util.RecordSpanError(span, err)
		return "", err
	}
	return zipPath, nil
}

func (p *Packager) createZip(ctx context.Context, opts model.PackagingOptions, progress func(string)) (string, error) {
	log := logger.FromContext(ctx)

	if err := packaging.Validate(&opts); err != nil {
		return "", err
	}

	scratch, err := p.lifecycle.Allocate()
	if err != nil {
		return "", packaging.Wrap(packaging.KindStorage, "allocate scratch", err)
	}
	defer p.lifecycle.Release(scratch)

	signing, err := pipeline.PrepareSigning(opts, scratch.Dir)
	if err != nil {
		return "", err
	}

	pkg, err := p.pipeline.RunWithFallback(ctx, pipeline.Request{
		Options:  opts,
		Dir:      scratch.Dir,
		Signing:  signing,
		Progress: progress,
	})
	if err != nil {
		return "", err
	}

	if progress != nil {
		progress("Zipping app package...")
	}
	if err := p.assembler.Assemble(ctx, pkg, opts, scratch.ZipPath); err != nil {
		return "", packaging.Wrap(packaging.KindToolchain, "assemble", fmt.Errorf("failed to zip app package: %w", err))
	}
	log.Info().Str("zip", scratch.ZipPath).Msg("app package zipped")
	return scratch.ZipPath, nil
}
