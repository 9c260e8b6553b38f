package jobservice

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrEmptyID     = errors.New("id cannot be empty")
	ErrJobNotFound = errors.New("job not found")
)

// JobService owns packaging job records and the queue they travel through.
// Records are saved under their id; the queue holds full copies so a worker
// can start without a second round trip.
type JobService struct {
	store    store.Store
	queueKey string
	now      func() time.Time
}

var (
	jobService *JobService
	once       sync.Once
	initError  error
)

// NewJobService returns the process wide job service bound to s.
func NewJobService(s store.Store) (*JobService, error) {
	once.Do(func() {
		cfg, err := config.GetConfig()
		if err != nil {
			initError = err
			return
		}
		jobService = New(s, cfg.IsProduction())
	})
	return jobService, initError
}

func New(s store.Store, production bool) *JobService {
	return &JobService{
		store:    s,
		queueKey: util.GetJobQueueKey(production),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *JobService) QueueKey() string {
	return s.queueKey
}

// NewJobID derives the job id from the options and the enqueue time. Equal
// options enqueued at different instants get different ids.
func NewJobID(opts model.PackagingOptions, now time.Time) (string, error) {
	u, err := url.Parse(opts.PwaURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid pwaUrl %q", opts.PwaURL)
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to hash options: %w", err)
	}
	optsHash := sha256.Sum256(raw)
	timeHash := sha256.Sum256([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	hash := fmt.Sprintf("%x%x", optsHash[:], timeHash[:])
	return util.GetJobID(u.Host, hash[len(hash)-6:]), nil
}

// Enqueue creates a Queued job for opts, saves it and pushes it on the
// queue. The returned id is what callers poll with.
func (s *JobService) Enqueue(ctx context.Context, opts model.PackagingOptions) (string, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "JobService/Enqueue")
	defer span.End()

	now := s.now()
	id, err := NewJobID(opts, now)
	if err != nil {
		util.RecordSpanError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("job_id", id))

	job := model.Job{
		ID:             id,
		PwaURL:         opts.PwaURL,
		PackageOptions: opts,
		Status:         model.JobQueued,
		RetryCount:     0,
		Logs:           []string{},
		Errors:         []string{},
		CreatedAt:      now,
	}
	if opts.AnalysisID != "" {
		a := opts.AnalysisID
		job.AnalysisID = &a
	}

	if err := s.store.Save(ctx, job.ID, job, s.store.GetDefaultTTL()); err != nil {
		err = fmt.Errorf("failed to save job %s: %w", job.ID, err)
		util.RecordSpanError(span, err)
		return "", err
	}
	length, err := s.store.Enqueue(ctx, s.queueKey, job)
	if err != nil {
		err = fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
		util.RecordSpanError(span, err)
		return "", err
	}
	logger.Log.Info().Str("id", job.ID).Int64("queue_length", length).Msg("enqueued package job")
	return job.ID, nil
}

// GetJob loads the job record. It returns ErrJobNotFound when the id is
// unknown or expired.
func (s *JobService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	job := &model.Job{}
	found, err := s.store.GetJSON(ctx, id, job)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve job %s: %w", id, err)
	}
	if !found {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Dequeue pops the next job. It returns nil when the queue is empty.
func (s *JobService) Dequeue(ctx context.Context) (*model.Job, error) {
	job := &model.Job{}
	found, err := s.store.Dequeue(ctx, s.queueKey, job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	remaining, err := s.store.QueueLength(ctx, s.queueKey)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("unable to read queue length")
	} else {
		logger.Log.Info().Str("id", job.ID).Int64("remaining", remaining).Msg("dequeued package job")
	}
	return job, nil
}

// Requeue pushes an existing job back on the queue and saves its record.
func (s *JobService) Requeue(ctx context.Context, job *model.Job) error {
	if err := s.UpdateJob(ctx, job); err != nil {
		return err
	}
	length, err := s.store.Enqueue(ctx, s.queueKey, job)
	if err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
	}
	logger.Log.Info().Str("id", job.ID).Int("retry_count", job.RetryCount).Int64("queue_length", length).Msg("requeued package job")
	return nil
}

// UpdateJob overwrites the stored record with job.
func (s *JobService) UpdateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		return ErrEmptyID
	}
	if err := s.store.Save(ctx, job.ID, job, s.store.GetDefaultTTL()); err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobService) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}
