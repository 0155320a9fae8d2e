package handlers

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-podcaster/internal/models"
	"doc-podcaster/internal/test"
	"doc-podcaster/pkg/tasks"
)

func expectBotUser(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (id, username)")).WithArgs(int64(7), "testuser").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "testuser", "feed-token", testNow, testNow))
}

func TestBotReplyCreatesPodcastFromLink(t *testing.T) {
	_, mock := test.NewMockDB(t)
	e := newEnv(t)
	h := New(e.pipeline, e.tracker, e.enqueuer, "https://pods.test", 1<<20)
	expectBotUser(mock)

	reply := h.BotReply(context.Background(), 7, "testuser", "", " https://example.com/post ")
	assert.Contains(t, reply, "Working on it")
	assert.Equal(t, []string{"https://example.com/post"}, e.pipeline.created)
	require.Len(t, e.enqueuer.EnqueuedTasks, 1)
	assert.Equal(t, tasks.TypeExtract, e.enqueuer.EnqueuedTasks[0].Type())
}

func TestBotReplyRejectsNonLinks(t *testing.T) {
	_, mock := test.NewMockDB(t)
	e := newEnv(t)
	h := New(e.pipeline, e.tracker, e.enqueuer, "https://pods.test", 1<<20)
	expectBotUser(mock)

	reply := h.BotReply(context.Background(), 7, "testuser", "", "hello there")
	assert.Contains(t, reply, "http")
	assert.Empty(t, e.pipeline.created)
}

func TestBotReplyList(t *testing.T) {
	_, mock := test.NewMockDB(t)
	e := newEnv(t)
	e.pipeline.jobs["a"] = models.Job{ID: "a", UserID: 7, Title: "Cats & Dogs", State: models.Ready{AudioURL: "7/a.mp3", DurationSeconds: 60}}
	h := New(e.pipeline, e.tracker, e.enqueuer, "https://pods.test/", 1<<20)
	expectBotUser(mock)

	reply := h.BotReply(context.Background(), 7, "testuser", "list", "/list")
	assert.Contains(t, reply, "<b>Cats &amp; Dogs</b>: ready")
	assert.Contains(t, reply, "https://pods.test/rss/feed-token")
}
