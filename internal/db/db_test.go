package db_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-podcaster/internal/db"
	"doc-podcaster/internal/test"
)

func TestMigrate(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaEnforcesStatusFields(t *testing.T) {
	b, err := os.ReadFile(filepath.Join(test.ProjectRoot(), "internal", "db", "schema.sql"))
	require.NoError(t, err)
	schema := string(b)

	assert.Contains(t, schema, "PRIMARY KEY (user_id, podcast_id)")
	assert.Contains(t, schema, "(status = 'ready') = (audio_url IS NOT NULL AND duration_seconds IS NOT NULL)")
	assert.Contains(t, schema, "(status = 'error') = (error_message IS NOT NULL)")
}
