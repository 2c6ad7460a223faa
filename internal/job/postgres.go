package job

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a pgx-backed implementation of Repository.
//
// Expected schema:
//
//	CREATE TABLE video_jobs (
//	    id              TEXT PRIMARY KEY,
//	    user_id         TEXT NOT NULL,
//	    prompt          TEXT NOT NULL,
//	    orientation     TEXT NOT NULL,
//	    status          TEXT NOT NULL,
//	    progress        INT NOT NULL DEFAULT 0,
//	    external_job_id TEXT,
//	    error_message   TEXT,
//	    video_id        TEXT,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL,
//	    completed_at    TIMESTAMPTZ
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new job repository backed by PostgreSQL.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const jobColumns = `id, user_id, prompt, orientation, status, progress,
COALESCE(external_job_id, ''), COALESCE(error_message, ''), COALESCE(video_id, ''),
created_at, updated_at, COALESCE(completed_at, 'epoch'::timestamptz)`

// Create inserts a new job record.
func (r *PostgresRepository) Create(ctx context.Context, j *Job) error {
	query := `
INSERT INTO video_jobs (id, user_id, prompt, orientation, status, progress, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		j.ID,
		j.UserID,
		j.Prompt,
		j.Orientation,
		j.Status,
		j.Progress,
		j.CreatedAt,
		j.UpdatedAt,
	)
	return err
}

// FindByID fetches a job by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE id = $1;`, id)
	return scanJob(row)
}

// ActiveByUser fetches the user's pending and processing jobs, newest first.
func (r *PostgresRepository) ActiveByUser(ctx context.Context, userID string) ([]*Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM video_jobs
WHERE user_id = $1 AND status IN ($2, $3)
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, query, userID, StatusPending, StatusProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateProgress sets the job's progress, rejecting out-of-range values.
func (r *PostgresRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 || progress > 100 {
		return ErrProgressOutOfRange
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE video_jobs SET progress = $2, updated_at = NOW() WHERE id = $1;`,
		id, progress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Transition moves the job to the given status after validating the edge.
// The update is keyed on the status that was read, so a concurrent writer
// causes a second validation round instead of a silent overwrite.
func (r *PostgresRepository) Transition(ctx context.Context, id string, to Status, errMsg string) error {
	return r.transition(ctx, id, to, errMsg, "")
}

// MarkProcessing transitions pending -> processing and records the external job ID.
func (r *PostgresRepository) MarkProcessing(ctx context.Context, id, externalJobID string) error {
	return r.transition(ctx, id, StatusProcessing, "", externalJobID)
}

func (r *PostgresRepository) transition(ctx context.Context, id string, to Status, errMsg, externalJobID string) error {
	for {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(current.Status, to) {
			return transitionError(current.Status, to)
		}

		query := `
UPDATE video_jobs
SET status = $3,
    updated_at = NOW(),
    completed_at = CASE WHEN $4 THEN NOW() ELSE completed_at END,
    error_message = COALESCE(NULLIF($5, ''), error_message),
    external_job_id = COALESCE(NULLIF($6, ''), external_job_id)
WHERE id = $1 AND status = $2;
`
		tag, err := r.pool.Exec(ctx, query,
			id, current.Status, to, to.IsTerminal(), errMsg, externalJobID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		// Lost a race with another writer; re-read and re-validate.
	}
}

// LinkVideo atomically completes the job with the given video.
// The update only applies while the job is processing.
func (r *PostgresRepository) LinkVideo(ctx context.Context, id, videoID string) error {
	query := `
UPDATE video_jobs
SET video_id = $2,
    status = $3,
    progress = 100,
    updated_at = NOW(),
    completed_at = NOW()
WHERE id = $1 AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, id, videoID, StatusCompleted, StatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		return transitionError(current.Status, StatusCompleted)
	}
	return nil
}

// FailStuck bulk-fails processing jobs not updated within the threshold.
func (r *PostgresRepository) FailStuck(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error) {
	query := `
UPDATE video_jobs
SET status = $1,
    error_message = $2,
    updated_at = NOW(),
    completed_at = NOW()
WHERE status = $3 AND updated_at < NOW() - $4::interval;
`
	tag, err := r.pool.Exec(ctx, query,
		StatusFailed, errMsg, StatusProcessing, olderThan.String(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteTerminalOlderThan removes old completed and failed jobs.
func (r *PostgresRepository) DeleteTerminalOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `
DELETE FROM video_jobs
WHERE status IN ($1, $2) AND completed_at < NOW() - $3::interval;
`
	tag, err := r.pool.Exec(ctx, query, StatusCompleted, StatusFailed, age.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// scanJob scans a job row in jobColumns order.
func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var completedAt time.Time
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Prompt,
		&j.Orientation,
		&j.Status,
		&j.Progress,
		&j.ExternalJobID,
		&j.ErrorMessage,
		&j.VideoID,
		&j.CreatedAt,
		&j.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if completedAt.Unix() > 0 {
		j.CompletedAt = completedAt
	}
	return &j, nil
}
