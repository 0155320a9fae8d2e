package db_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-podcaster/internal/db"
	"doc-podcaster/internal/test"
)

func TestUpsertUser(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, username)")).
		WithArgs(int64(123), "testuser").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "rss_uuid", "created_at", "updated_at"}).
			AddRow(int64(123), "testuser", "5b0c5b5e-0000-4000-8000-000000000001", now, now))

	user, err := db.UpsertUser(context.Background(), 123, "testuser")
	require.NoError(t, err)
	assert.Equal(t, int64(123), user.ID)
	assert.Equal(t, "5b0c5b5e-0000-4000-8000-000000000001", user.RSSUUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByRSSUUID(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE rss_uuid = $1")).
		WithArgs("feed-token").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "rss_uuid", "created_at", "updated_at"}).
			AddRow(int64(123), "testuser", "feed-token", now, now))

	user, err := db.GetUserByRSSUUID(context.Background(), "feed-token")
	require.NoError(t, err)
	assert.Equal(t, int64(123), user.ID)
}
