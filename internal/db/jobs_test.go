package db_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-podcaster/internal/apperr"
	"doc-podcaster/internal/db"
	"doc-podcaster/internal/models"
	"doc-podcaster/internal/test"
)

var jobCols = []string{"id", "user_id", "source", "title", "status", "script", "audio_url",
	"duration_seconds", "word_count", "error_message", "created_at", "expires_at"}

const (
	jobID     = "3f6c1a9e-2b7d-4c8e-9f10-5a6b7c8d9e01"
	missingID = "3f6c1a9e-2b7d-4c8e-9f10-5a6b7c8d9e99"
)

var (
	created = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expires = created.Add(30 * 24 * time.Hour)
)

func TestCreateJob(t *testing.T) {
	_, mock := test.NewMockDB(t)

	job := models.Job{
		ID:        jobID,
		UserID:    7,
		Source:    "https://example.com/a",
		State:     models.Extracting{},
		CreatedAt: created,
		ExpiresAt: expires,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO podcasts")).
		WithArgs(jobID, int64(7), "https://example.com/a", "", "extracting", nil, nil, nil, nil, nil, created, expires).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.CreateJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobReady(t *testing.T) {
	_, mock := test.NewMockDB(t)

	rows := sqlmock.NewRows(jobCols).AddRow(jobID, int64(7), "https://example.com/a", "Title", "ready",
		[]byte(`[{"speaker":"A","text":"Hi"},{"speaker":"B","text":"Hello"}]`),
		"7/job-1.mp3", int64(120), int64(1200), nil, created, expires)
	mock.ExpectQuery(regexp.QuoteMeta("FROM podcasts WHERE id = $1")).WithArgs(jobID).WillReturnRows(rows)

	job, err := db.GetJob(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, models.Ready{AudioURL: "7/job-1.mp3", DurationSeconds: 120}, job.State)
	assert.Equal(t, []models.Segment{{Speaker: models.SpeakerA, Text: "Hi"}, {Speaker: models.SpeakerB, Text: "Hello"}}, job.Script)
	require.NotNil(t, job.WordCount)
	assert.Equal(t, 1200, *job.WordCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobFailed(t *testing.T) {
	_, mock := test.NewMockDB(t)

	rows := sqlmock.NewRows(jobCols).AddRow(jobID, int64(7), "file://paper.pdf", "", "error",
		nil, nil, nil, nil, "no text content found", created, expires)
	mock.ExpectQuery(regexp.QuoteMeta("FROM podcasts WHERE id = $1")).WithArgs(jobID).WillReturnRows(rows)

	job, err := db.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	msg, ok := job.ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "no text content found", msg)
	assert.Nil(t, job.Script)
}

func TestGetJobNotFound(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM podcasts WHERE id = $1")).WithArgs(missingID).
		WillReturnRows(sqlmock.NewRows(jobCols))

	_, err := db.GetJob(context.Background(), missingID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetJobRejectsInconsistentRows(t *testing.T) {
	cases := []struct {
		name string
		row  []driver.Value
	}{
		{"audio while extracting", []driver.Value{"j", int64(1), "s", "", "extracting", nil, "1/j.mp3", nil, nil, nil, created, expires}},
		{"ready without audio", []driver.Value{"j", int64(1), "s", "", "ready", nil, nil, nil, nil, nil, created, expires}},
		{"message while generating", []driver.Value{"j", int64(1), "s", "", "generating", nil, nil, nil, nil, "boom", created, expires}},
		{"unknown status", []driver.Value{"j", int64(1), "s", "", "queued", nil, nil, nil, nil, nil, created, expires}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mock := test.NewMockDB(t)
			mock.ExpectQuery(regexp.QuoteMeta("FROM podcasts WHERE id = $1")).
				WillReturnRows(sqlmock.NewRows(jobCols).AddRow(tc.row...))

			_, err := db.GetJob(context.Background(), jobID)
			assert.Error(t, err)
		})
	}
}

func TestUpdateJobGuardsOnStatus(t *testing.T) {
	_, mock := test.NewMockDB(t)

	wc := 1200
	job := models.Job{
		ID:        jobID,
		UserID:    7,
		Source:    "https://example.com/a",
		Title:     "Title",
		WordCount: &wc,
		State:     models.Generating{},
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE podcasts SET")).
		WithArgs("Title", "generating", nil, nil, nil, int64(1200), nil, jobID, int64(7), "extracting").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.UpdateJob(context.Background(), job, models.StatusExtracting))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE podcasts SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := db.UpdateJob(context.Background(), job, models.StatusExtracting)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobWritesReadyFields(t *testing.T) {
	_, mock := test.NewMockDB(t)

	job := models.Job{
		ID:     jobID,
		UserID: 7,
		Script: []models.Segment{{Speaker: models.SpeakerA, Text: "Hi"}},
		State:  models.Ready{AudioURL: "7/job-1.mp3", DurationSeconds: 60},
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE podcasts SET")).
		WithArgs("", "ready", sqlmock.AnyArg(), "7/job-1.mp3", int64(60), nil, nil, jobID, int64(7), "synthesizing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.UpdateJob(context.Background(), job, models.StatusSynthesizing))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsByUser(t *testing.T) {
	_, mock := test.NewMockDB(t)

	rows := sqlmock.NewRows(jobCols).
		AddRow("job-2", int64(7), "s2", "", "extracting", nil, nil, nil, nil, nil, created.Add(time.Hour), expires).
		AddRow(jobID, int64(7), "s1", "", "expired", nil, nil, nil, int64(10), nil, created, expires)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 ORDER BY created_at DESC")).WithArgs(int64(7)).WillReturnRows(rows)

	jobs, err := db.ListJobsByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, models.StatusExpired, jobs[1].Status())
}

func TestListJobsPastHorizon(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := expires.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE expires_at < $1 AND status <> 'expired'")).WithArgs(now).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow(jobID, int64(7), "s", "T", "ready", nil, "7/job-1.mp3", int64(60), int64(150), nil, created, expires))

	jobs, err := db.ListJobsPastHorizon(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.StatusReady, jobs[0].Status())
}

func TestDeleteJob(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM podcasts WHERE id = $1 AND user_id = $2")).
		WithArgs(jobID, int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.DeleteJob(context.Background(), 7, jobID))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM podcasts")).
		WithArgs(jobID, int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, db.DeleteJob(context.Background(), 7, jobID), apperr.ErrNotFound)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	_, mock := test.NewMockDB(t)

	_, err := db.GetJob(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, db.DeleteJob(context.Background(), 7, "../etc"), apperr.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
