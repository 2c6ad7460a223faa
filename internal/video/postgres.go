package video

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository is a pgx-backed implementation of Repository.
//
// Expected schema:
//
//	CREATE TABLE videos (
//	    id            TEXT PRIMARY KEY,
//	    user_id       TEXT NOT NULL,
//	    prompt        TEXT NOT NULL,
//	    orientation   TEXT NOT NULL,
//	    model_used    TEXT NOT NULL,
//	    video_url     TEXT NOT NULL,
//	    thumbnail_url TEXT,
//	    duration      INT,
//	    status        TEXT NOT NULL,
//	    metadata      JSONB,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new video repository backed by PostgreSQL.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const videoColumns = `id, user_id, prompt, orientation, model_used, video_url,
COALESCE(thumbnail_url, ''), COALESCE(duration, 0), status, metadata, created_at`

// Create inserts a new video record.
func (r *PostgresRepository) Create(ctx context.Context, v *Video) error {
	query := `
INSERT INTO videos (id, user_id, prompt, orientation, model_used, video_url, thumbnail_url, duration, status, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, 0), $9, $10, $11);
`
	_, err := r.pool.Exec(ctx, query,
		v.ID,
		v.UserID,
		v.Prompt,
		v.Orientation,
		v.ModelUsed,
		v.VideoURL,
		v.ThumbnailURL,
		v.Duration,
		v.Status,
		v.Metadata,
		v.CreatedAt,
	)
	return err
}

// FindByID fetches a video by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1;`, id)
	return scanVideo(row)
}

// ListByUser returns one page of the user's videos, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	opts = opts.normalize()

	where := `WHERE user_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM videos `+where+`;`,
		userID, string(opts.Status),
	).Scan(&total)
	if err != nil {
		return nil, err
	}

	query := `
SELECT ` + videoColumns + `
FROM videos ` + where + `
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;
`
	rows, err := r.pool.Query(ctx, query,
		userID, string(opts.Status), opts.Limit, (opts.Page-1)*opts.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := make([]*Video, 0, opts.Limit)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Videos:     videos,
		Page:       opts.Page,
		Limit:      opts.Limit,
		Total:      total,
		TotalPages: (total + opts.Limit - 1) / opts.Limit,
	}, nil
}

// scanVideo scans a video row in videoColumns order.
func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.Prompt,
		&v.Orientation,
		&v.ModelUsed,
		&v.VideoURL,
		&v.ThumbnailURL,
		&v.Duration,
		&v.Status,
		&v.Metadata,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &v, nil
}
