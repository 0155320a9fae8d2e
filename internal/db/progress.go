package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"doc-podcaster/internal/models"
)

// UpsertProgress writes the durable playback position for (user, podcast).
// Repeating the same call leaves the same row.
func UpsertProgress(ctx context.Context, p models.PlaybackProgress) error {
	query := `
		INSERT INTO playback_progress (user_id, podcast_id, progress_seconds, completed, last_played_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, podcast_id) DO UPDATE SET
			progress_seconds = EXCLUDED.progress_seconds,
			completed = EXCLUDED.completed,
			last_played_at = EXCLUDED.last_played_at
	`
	_, err := DB.ExecContext(ctx, query, p.UserID, p.PodcastID, p.ProgressSeconds, p.Completed, p.LastPlayedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

// GetProgress returns the durable position, or nil when none was recorded.
func GetProgress(ctx context.Context, userID int64, podcastID string) (*models.PlaybackProgress, error) {
	p := &models.PlaybackProgress{}
	query := `
		SELECT user_id, podcast_id, progress_seconds, completed, last_played_at
		FROM playback_progress WHERE user_id = $1 AND podcast_id = $2
	`
	err := DB.GetContext(ctx, p, query, userID, podcastID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}
