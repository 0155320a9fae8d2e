package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/models"
)

const jobColumns = `id, user_id, source, title, status, script, audio_url, duration_seconds,
	word_count, error_message, created_at, expires_at`

// jobRow is the flat database shape of models.Job.
type jobRow struct {
	ID              string             `db:"id"`
	UserID          int64              `db:"user_id"`
	Source          string             `db:"source"`
	Title           string             `db:"title"`
	Status          string             `db:"status"`
	Script          types.NullJSONText `db:"script"`
	AudioURL        sql.NullString     `db:"audio_url"`
	DurationSeconds sql.NullInt64      `db:"duration_seconds"`
	WordCount       sql.NullInt64      `db:"word_count"`
	ErrorMessage    sql.NullString     `db:"error_message"`
	CreatedAt       time.Time          `db:"created_at"`
	ExpiresAt       time.Time          `db:"expires_at"`
}

// toJob rebuilds the tagged state and rejects rows whose nullable columns
// disagree with their status.
func (r jobRow) toJob() (models.Job, error) {
	job := models.Job{
		ID:        r.ID,
		UserID:    r.UserID,
		Source:    r.Source,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
	if r.WordCount.Valid {
		wc := int(r.WordCount.Int64)
		job.WordCount = &wc
	}
	if r.Script.Valid && len(r.Script.JSONText) > 0 {
		if err := json.Unmarshal(r.Script.JSONText, &job.Script); err != nil {
			return models.Job{}, fmt.Errorf("podcast %s has malformed script: %w", r.ID, err)
		}
	}

	status := models.Status(r.Status)
	if status != models.StatusReady && (r.AudioURL.Valid || r.DurationSeconds.Valid) {
		return models.Job{}, fmt.Errorf("podcast %s is %s but has audio", r.ID, status)
	}
	if status != models.StatusError && r.ErrorMessage.Valid {
		return models.Job{}, fmt.Errorf("podcast %s is %s but has an error message", r.ID, status)
	}

	switch status {
	case models.StatusExtracting:
		job.State = models.Extracting{}
	case models.StatusGenerating:
		job.State = models.Generating{}
	case models.StatusSynthesizing:
		job.State = models.Synthesizing{}
	case models.StatusReady:
		if !r.AudioURL.Valid || !r.DurationSeconds.Valid {
			return models.Job{}, fmt.Errorf("podcast %s is ready without audio", r.ID)
		}
		job.State = models.Ready{AudioURL: r.AudioURL.String, DurationSeconds: int(r.DurationSeconds.Int64)}
	case models.StatusError:
		job.State = models.Failed{Message: r.ErrorMessage.String}
	case models.StatusExpired:
		job.State = models.Expired{}
	default:
		return models.Job{}, fmt.Errorf("podcast %s has unknown status %q", r.ID, r.Status)
	}
	return job, nil
}

func fromJob(job models.Job) (jobRow, error) {
	r := jobRow{
		ID:        job.ID,
		UserID:    job.UserID,
		Source:    job.Source,
		Title:     job.Title,
		Status:    string(job.Status()),
		CreatedAt: job.CreatedAt,
		ExpiresAt: job.ExpiresAt,
	}
	if job.WordCount != nil {
		r.WordCount = sql.NullInt64{Int64: int64(*job.WordCount), Valid: true}
	}
	if len(job.Script) > 0 {
		b, err := json.Marshal(job.Script)
		if err != nil {
			return jobRow{}, fmt.Errorf("failed to encode script: %w", err)
		}
		r.Script = types.NullJSONText{JSONText: b, Valid: true}
	}
	switch s := job.State.(type) {
	case models.Ready:
		r.AudioURL = sql.NullString{String: s.AudioURL, Valid: true}
		r.DurationSeconds = sql.NullInt64{Int64: int64(s.DurationSeconds), Valid: true}
	case models.Failed:
		r.ErrorMessage = sql.NullString{String: s.Message, Valid: true}
	}
	return r, nil
}

// CreateJob inserts a new podcast job.
func CreateJob(ctx context.Context, job models.Job) error {
	r, err := fromJob(job)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO podcasts (id, user_id, source, title, status, script, audio_url, duration_seconds,
			word_count, error_message, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = DB.ExecContext(ctx, query, r.ID, r.UserID, r.Source, r.Title, r.Status, r.Script,
		r.AudioURL, r.DurationSeconds, r.WordCount, r.ErrorMessage, r.CreatedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create podcast: %w", err)
	}
	return nil
}

// GetJob fetches a job by id regardless of owner.
func GetJob(ctx context.Context, id string) (models.Job, error) {
	if !validID(id) {
		return models.Job{}, apperr.ErrNotFound
	}
	var r jobRow
	err := DB.GetContext(ctx, &r, "SELECT "+jobColumns+" FROM podcasts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("failed to get podcast: %w", err)
	}
	return r.toJob()
}

// ListJobsByUser returns a user's jobs, newest first.
func ListJobsByUser(ctx context.Context, userID int64) ([]models.Job, error) {
	var rows []jobRow
	err := DB.SelectContext(ctx, &rows, "SELECT "+jobColumns+" FROM podcasts WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}
	return toJobs(rows)
}

// ListReadyJobsByUser returns a user's playable jobs, newest first.
func ListReadyJobsByUser(ctx context.Context, userID int64) ([]models.Job, error) {
	var rows []jobRow
	err := DB.SelectContext(ctx, &rows, "SELECT "+jobColumns+" FROM podcasts WHERE user_id = $1 AND status = 'ready' ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ready podcasts: %w", err)
	}
	return toJobs(rows)
}

// ListJobsPastHorizon returns jobs whose retention ended before now and that
// are not already expired.
func ListJobsPastHorizon(ctx context.Context, now time.Time) ([]models.Job, error) {
	var rows []jobRow
	err := DB.SelectContext(ctx, &rows, "SELECT "+jobColumns+" FROM podcasts WHERE expires_at < $1 AND status <> 'expired'", now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired podcasts: %w", err)
	}
	return toJobs(rows)
}

func toJobs(rows []jobRow) ([]models.Job, error) {
	jobs := make([]models.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// UpdateJob writes job only if the stored status still equals from.
// Zero affected rows is reported as apperr.ErrConflict.
func UpdateJob(ctx context.Context, job models.Job, from models.Status) error {
	r, err := fromJob(job)
	if err != nil {
		return err
	}
	query := `
		UPDATE podcasts SET
			title = $1, status = $2, script = $3, audio_url = $4, duration_seconds = $5,
			word_count = $6, error_message = $7
		WHERE id = $8 AND user_id = $9 AND status = $10
	`
	res, err := DB.ExecContext(ctx, query, r.Title, r.Status, r.Script, r.AudioURL, r.DurationSeconds,
		r.WordCount, r.ErrorMessage, r.ID, r.UserID, string(from))
	if err != nil {
		return fmt.Errorf("failed to update podcast: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update podcast: %w", err)
	}
	if n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// DeleteJob removes a job owned by userID.
func DeleteJob(ctx context.Context, userID int64, id string) error {
	if !validID(id) {
		return apperr.ErrNotFound
	}
	res, err := DB.ExecContext(ctx, "DELETE FROM podcasts WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete podcast: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete podcast: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// validID reports whether id can match the uuid primary key at all.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
