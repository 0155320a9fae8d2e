package db

import (
	"context"
	"time"

	"doc-podcaster/internal/models"
)

// Store exposes the package functions as a value so callers can depend on
// narrow interfaces and swap in fakes under test.
type Store struct{}

func (Store) CreateJob(ctx context.Context, job models.Job) error {
	return CreateJob(ctx, job)
}

func (Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	return GetJob(ctx, id)
}

func (Store) ListJobsByUser(ctx context.Context, userID int64) ([]models.Job, error) {
	return ListJobsByUser(ctx, userID)
}

func (Store) ListReadyJobsByUser(ctx context.Context, userID int64) ([]models.Job, error) {
	return ListReadyJobsByUser(ctx, userID)
}

func (Store) ListJobsPastHorizon(ctx context.Context, now time.Time) ([]models.Job, error) {
	return ListJobsPastHorizon(ctx, now)
}

func (Store) UpdateJob(ctx context.Context, job models.Job, from models.Status) error {
	return UpdateJob(ctx, job, from)
}

func (Store) DeleteJob(ctx context.Context, userID int64, id string) error {
	return DeleteJob(ctx, userID, id)
}

func (Store) UpsertProgress(ctx context.Context, p models.PlaybackProgress) error {
	return UpsertProgress(ctx, p)
}

func (Store) GetProgress(ctx context.Context, userID int64, podcastID string) (*models.PlaybackProgress, error) {
	return GetProgress(ctx, userID, podcastID)
}

func (Store) UpsertUser(ctx context.Context, id int64, username string) (*models.User, error) {
	return UpsertUser(ctx, id, username)
}

func (Store) GetUserByRSSUUID(ctx context.Context, rssUUID string) (*models.User, error) {
	return GetUserByRSSUUID(ctx, rssUUID)
}
