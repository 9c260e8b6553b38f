package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	jobservice "github.com/pwa-builder/PWABuilder-sub006/internal/service/job_service"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/telemetry"
	"github.com/pwa-builder/PWABuilder-sub006/internal/storage"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Packager produces the zip for one set of options.
type Packager interface {
	CreateZip(ctx context.Context, opts model.PackagingOptions, progress func(string)) (string, error)
}

// Auditor records terminal job outcomes.
type Auditor interface {
	InsertOutcome(ctx context.Context, o model.JobOutcome) error
}

// Worker pulls packaging jobs off the queue and drives each one to a
// terminal state, or back onto the queue for a retry.
type Worker struct {
	jobs      *jobservice.JobService
	packager  Packager
	storage   storage.Storage
	telemetry telemetry.Telemetry
	auditor   Auditor

	maxRetries   int
	pollInterval time.Duration
	concurrency  int
	now          func() time.Time

	queueWait metric.Float64Histogram
	outcomes  metric.Int64Counter

	wg sync.WaitGroup
}

type Option func(*Worker)

func WithAuditor(a Auditor) Option {
	return func(w *Worker) { w.auditor = a }
}

func WithMaxRetries(n int) Option {
	return func(w *Worker) { w.maxRetries = n }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithConfig applies the WORKER_* settings.
func WithConfig(cfg *config.WorkerConfig) Option {
	return func(w *Worker) {
		w.maxRetries = cfg.MAX_RETRIES
		w.pollInterval = cfg.POLL_INTERVAL
		if cfg.CONCURRENCY > 0 {
			w.concurrency = cfg.CONCURRENCY
		}
	}
}

func New(jobs *jobservice.JobService, p Packager, s storage.Storage, t telemetry.Telemetry, opts ...Option) *Worker {
	w := &Worker{
		jobs:         jobs,
		packager:     p,
		storage:      s,
		telemetry:    t,
		maxRetries:   1,
		pollInterval: 5 * time.Second,
		concurrency:  1,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(w)
	}
	if w.telemetry == nil {
		w.telemetry = telemetry.Noop{}
	}

	w.instrument(job_tracer.GetMeter())
	return w
}

// instrument creates the worker metrics on meter. An instrument that cannot
// be created is logged and left unset.
func (w *Worker) instrument(meter metric.Meter) {
	h, err := meter.Float64Histogram("job_queue_duration_seconds",
		metric.WithDescription("Time a job spent queued before processing started"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("queue wait histogram unavailable")
		h = nil
	}
	w.queueWait = h

	c, err := meter.Int64Counter("job_outcomes_total",
		metric.WithDescription("Processed jobs by resulting status"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("job outcome counter unavailable")
		c = nil
	}
	w.outcomes = c
}

// Start launches the polling loops and returns immediately. Cancel ctx to
// stop polling, then call Wait for in-flight jobs.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(n int) {
			defer w.wg.Done()
			w.loop(ctx, n)
		}(i)
	}
	logger.Log.Info().Int("concurrency", w.concurrency).Str("queue", w.jobs.QueueKey()).Msg("worker started")
}

// Wait blocks until every loop has returned, or ctx expires.
func (w *Worker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context, n int) {
	log := logger.Log.With().Int("loop", n).Logger()
	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("queue unavailable")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// ProcessNext handles at most one job. It reports whether a job was taken
// off the queue. An unhealthy store or a failed pop count as no job.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if err := w.jobs.HealthCheck(ctx); err != nil {
		return false, err
	}
	job, err := w.jobs.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	// a running build is never interrupted by shutdown
	w.Process(context.WithoutCancel(ctx), job)
	return true, nil
}

// Process runs one dequeued job to completion, failure or requeue.
func (w *Worker) Process(ctx context.Context, job *model.Job) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Worker/Process")
	defer span.End()
	span.SetAttributes(attribute.String("job_id", job.ID), attribute.Int("retry_count", job.RetryCount))

	ctx, log := logger.ForJob(ctx, job.ID)
	if w.queueWait != nil && !job.CreatedAt.IsZero() {
		w.queueWait.Record(ctx, w.now().Sub(job.CreatedAt).Seconds())
	}

	job.Status = model.JobProcessing
	w.appendLog(job, "Processing package job")
	if err := w.jobs.UpdateJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("unable to mark job processing")
	}

	blobName, err := w.build(ctx, job)
	if err != nil {
		util.RecordSpanError(span, err)
		w.fail(ctx, job, err)
		return
	}

	job.Status = model.JobCompleted
	job.UploadedBlobFileName = blobName
	w.appendLog(job, "Package job completed")
	if err := w.jobs.UpdateJob(ctx, job); err != nil {
		log.Error().Err(err).Msg("unable to mark job completed")
	}
	log.Info().Str("blob", blobName).Msg("package job completed")
	w.finish(ctx, job, "")
}

func (w *Worker) build(ctx context.Context, job *model.Job) (string, error) {
	zipPath, err := w.packager.CreateZip(ctx, job.PackageOptions, func(msg string) {
		w.appendLog(job, msg)
	})
	if err != nil {
		return "", err
	}
	blobName, err := w.storage.Upload(ctx, zipPath, job.ID)
	if err != nil {
		return "", packaging.Wrap(packaging.KindStorage, "upload", err)
	}
	return blobName, nil
}

func (w *Worker) fail(ctx context.Context, job *model.Job, err error) {
	log := logger.FromContext(ctx)
	msg := err.Error()
	job.Errors = append(job.Errors, msg)
	w.appendLog(job, "Error: "+msg)

	if packaging.IsRetryable(err) && job.RetryCount < w.maxRetries {
		job.RetryCount++
		job.Status = model.JobQueued
		w.appendLog(job, fmt.Sprintf("Retrying, attempt %d of %d", job.RetryCount, w.maxRetries))
		rerr := w.jobs.Requeue(ctx, job)
		if rerr == nil {
			log.Warn().Err(err).Int("retry_count", job.RetryCount).Msg("package job requeued")
			w.count(ctx, model.JobQueued)
			return
		}
		log.Error().Err(rerr).Msg("unable to requeue job")
		job.Errors = append(job.Errors, rerr.Error())
	}

	job.Status = model.JobFailed
	if uerr := w.jobs.UpdateJob(ctx, job); uerr != nil {
		log.Error().Err(uerr).Msg("unable to mark job failed")
	}
	log.Error().Err(err).Str("kind", packaging.KindOf(err).String()).Msg("package job failed")
	w.finish(ctx, job, msg)
}

// finish emits the telemetry event and audit row of a terminal outcome.
func (w *Worker) finish(ctx context.Context, job *model.Job, errMsg string) {
	w.count(ctx, job.Status)
	w.telemetry.Track(ctx, telemetry.InfoFromOptions(job.PackageOptions), errMsg, job.Status == model.JobCompleted)

	if w.auditor == nil {
		return
	}
	o := model.JobOutcome{
		JobID:       job.ID,
		PackageID:   job.PackageOptions.PackageID,
		Host:        hostOf(job.PwaURL),
		SigningMode: string(job.PackageOptions.SigningMode),
		Status:      string(job.Status),
		RetryCount:  job.RetryCount,
		BlobName:    job.UploadedBlobFileName,
		Error:       errMsg,
		CreatedAt:   job.CreatedAt,
		FinishedAt:  w.now(),
	}
	if err := w.auditor.InsertOutcome(ctx, o); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("unable to record job outcome")
	}
}

func (w *Worker) count(ctx context.Context, status model.JobStatus) {
	if w.outcomes != nil {
		w.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
	}
}

func (w *Worker) appendLog(job *model.Job, msg string) {
	job.Logs = append(job.Logs, fmt.Sprintf("%s %s", w.now().Format(time.RFC3339), msg))
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
