package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pwa-builder/PWABuilder-sub006/internal/db"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const outcomeColumns = `job_id, package_id, host, signing_mode, status, retry_count, blob_name, error, created_at, finished_at`

// JobRepository is the append-only audit trail of terminal job outcomes.
type JobRepository struct {
	db *db.DB
}

func NewJobRepository(db *db.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) InsertOutcome(ctx context.Context, o model.JobOutcome) error {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Postgres/InsertOutcome")
	defer span.End()

	span.AddEvent("job.context",
		trace.WithAttributes(attribute.String("status", o.Status), attribute.String("id", o.JobID)),
	)

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO job_outcomes (`+outcomeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		o.JobID,
		o.PackageID,
		o.Host,
		o.SigningMode,
		o.Status,
		o.RetryCount,
		o.BlobName,
		o.Error,
		o.CreatedAt,
		o.FinishedAt,
	)
	if err != nil {
		err = fmt.Errorf("failed to insert outcome for %s: %w", o.JobID, err)
		util.RecordSpanError(span, err)
		return err
	}
	return nil
}

// ListRecent returns up to limit outcomes, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]model.JobOutcome, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Postgres/ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 25
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+outcomeColumns+`
		FROM job_outcomes
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}
	outcomes, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.JobOutcome])
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}
	return outcomes, nil
}

// ListByJob returns every recorded outcome of one job, oldest first.
func (r *JobRepository) ListByJob(ctx context.Context, jobID string) ([]model.JobOutcome, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Postgres/ListByJob")
	defer span.End()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+outcomeColumns+`
		FROM job_outcomes
		WHERE job_id = $1
		ORDER BY finished_at ASC`, jobID)
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}
	outcomes, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.JobOutcome])
	if err != nil {
		util.RecordSpanError(span, err)
		return nil, err
	}
	return outcomes, nil
}
