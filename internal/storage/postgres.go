package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/vb/internal/config"
	"github.com/your-org/vb/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	if j.Params == nil {
		j.Params = json.RawMessage("{}")
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, source_url, source_key, source_type, status, fps, params)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		j.ID, j.SourceURL, j.SourceKey, j.SourceType, j.Status, j.FPS, j.Params,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_url, source_key, source_type, status, fps, frames_total, frames_done, output_key, params, error_message, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.SourceURL, &j.SourceKey, &j.SourceType, &j.Status, &j.FPS,
		&j.FramesTotal, &j.FramesDone, &j.OutputKey, &j.Params, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_url, source_key, source_type, status, fps, frames_total, frames_done, output_key, params, error_message, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.SourceURL, &j.SourceKey, &j.SourceType, &j.Status, &j.FPS,
			&j.FramesTotal, &j.FramesDone, &j.OutputKey, &j.Params, &j.ErrorMessage,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	return err
}

// SetJobSource records the uploaded source object key.
func (s *PostgresStore) SetJobSource(ctx context.Context, id uuid.UUID, sourceKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET source_key = $1, updated_at = now() WHERE id = $2`, sourceKey, id)
	return err
}

// SetJobFPS records the probed source frame rate.
func (s *PostgresStore) SetJobFPS(ctx context.Context, id uuid.UUID, fps int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET fps = $1, updated_at = now() WHERE id = $2`, fps, id)
	return err
}

// SetJobFramesTotal records the frame count once extraction finishes.
func (s *PostgresStore) SetJobFramesTotal(ctx context.Context, id uuid.UUID, total int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET frames_total = $1, updated_at = now() WHERE id = $2`, total, id)
	return err
}

// IncrementJobFramesDone bumps the processed-frame counter and returns
// the new value, so callers can detect completion without racing.
func (s *PostgresStore) IncrementJobFramesDone(ctx context.Context, id uuid.UUID) (int, error) {
	var done int
	err := s.pool.QueryRow(ctx,
		`UPDATE jobs SET frames_done = frames_done + 1, updated_at = now() WHERE id = $1 RETURNING frames_done`,
		id).Scan(&done)
	if err != nil {
		return 0, fmt.Errorf("increment frames done: %w", err)
	}
	return done, nil
}

func (s *PostgresStore) SetJobOutput(ctx context.Context, id uuid.UUID, outputKey string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET output_key = $1, status = $2, updated_at = now() WHERE id = $3`,
		outputKey, models.JobStatusCompleted, id)
	return err
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job not found")
	}
	return nil
}

// AssemblableJobs returns file jobs whose every extracted frame has been
// processed but which have not yet been assembled into an output video.
func (s *PostgresStore) AssemblableJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_url, source_key, source_type, status, fps, frames_total, frames_done, output_key, params, error_message, created_at, updated_at
		 FROM jobs
		 WHERE source_type = $1 AND status = $2 AND frames_total > 0 AND frames_done >= frames_total`,
		models.SourceTypeFile, models.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list assemblable jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.SourceURL, &j.SourceKey, &j.SourceType, &j.Status, &j.FPS,
			&j.FramesTotal, &j.FramesDone, &j.OutputKey, &j.Params, &j.ErrorMessage,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, job_id, frame_index, timestamp, regions, frame_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.JobID, ev.FrameIndex, ev.Timestamp, ev.Regions, ev.FrameKey, ev.CreatedAt)
	return err
}

func (s *PostgresStore) QueryEvents(ctx context.Context, jobID uuid.UUID, from, to *time.Time, limit, offset int) ([]models.Event, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE job_id = $1"
	args := []interface{}{jobID}
	argIdx := 2

	if from != nil {
		baseWhere += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		baseWhere += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM events " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, job_id, frame_index, timestamp, regions, frame_key, created_at
		 FROM events %s ORDER BY frame_index DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.JobID, &ev.FrameIndex, &ev.Timestamp,
			&ev.Regions, &ev.FrameKey, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var ev models.Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_id, frame_index, timestamp, regions, frame_key, created_at
		 FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.JobID, &ev.FrameIndex, &ev.Timestamp, &ev.Regions, &ev.FrameKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}
